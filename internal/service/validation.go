package service

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/pkg/calendar"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

func registerDomainValidations(v *validator.Validate) {
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("score_type", func(fl validator.FieldLevel) bool {
		return models.ScoreType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		g := fl.Field().String()
		return g == models.GenderMale || g == models.GenderFemale
	})
}

func newDomainValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	registerDomainValidations(v)
	return v
}

// parseDate reads an ISO calendar date in the given location.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(calendar.DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, appErrors.Validation(err, "invalid date, expected YYYY-MM-DD")
	}
	return t, nil
}

func parseOptionalDate(raw string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func newPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
