package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/middleware"
	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/service"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/response"
)

type reportService interface {
	ClassSummary(ctx context.Context, claims *models.JWTClaims, classID string) (*models.ClassReportSummary, bool, error)
	StudentSummary(ctx context.Context, claims *models.JWTClaims) (*models.StudentReportRow, error)
}

type monthlyExporter interface {
	MonthlyAttendance(ctx context.Context, claims *models.JWTClaims, req service.MonthlyReportRequest) (*service.ExportFile, error)
}

// ReportHandler exposes aggregated reports and monthly exports.
type ReportHandler struct {
	reports reportService
	exports monthlyExporter
	now     func() time.Time
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService, exports monthlyExporter) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports, now: time.Now}
}

// ClassSummary godoc
// @Summary Class attendance, Mass and score summary
// @Tags Reports
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /reports/classes/{id}/summary [get]
func (h *ReportHandler) ClassSummary(c *gin.Context) {
	summary, cacheHit, err := h.reports.ClassSummary(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// StudentSummary godoc
// @Summary Report row of the signed-in student
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/students/me [get]
func (h *ReportHandler) StudentSummary(c *gin.Context) {
	row, err := h.reports.StudentSummary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// MonthlyAttendance godoc
// @Summary Monthly attendance sheet
// @Description Month is zero-based (0 = January). Defaults to the current month.
// @Tags Reports
// @Produce text/csv,application/pdf
// @Param id path string true "Class ID"
// @Param year query int false "Year"
// @Param month query int false "Zero-based month"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/classes/{id}/attendance [get]
func (h *ReportHandler) MonthlyAttendance(c *gin.Context) {
	now := h.now()
	year, err := intQuery(c, "year", now.Year())
	if err != nil {
		response.Error(c, err)
		return
	}
	month, err := intQuery(c, "month", int(now.Month())-1)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := service.MonthlyReportRequest{
		ClassID: c.Param("id"),
		Year:    year,
		Month:   month,
		Format:  c.DefaultQuery("format", service.ReportFormatCSV),
	}
	file, err := h.exports.MonthlyAttendance(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return v, nil
}
