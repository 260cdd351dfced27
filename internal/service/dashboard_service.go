package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/repository"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type dashboardCounter interface {
	Counts(ctx context.Context, academicYearID string) (*repository.DashboardCounts, error)
}

type currentYearLookup interface {
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Counter dashboardCounter
	Years   currentYearLookup
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// DashboardService composes the staff dashboard counts.
type DashboardService struct {
	counter dashboardCounter
	years   currentYearLookup
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		counter: params.Counter,
		years:   params.Years,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Summary returns counts for the current academic year and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	summary := &models.DashboardSummary{}
	yearID := ""
	year, err := s.years.FindCurrent(ctx)
	switch {
	case err == nil && year != nil:
		yearID = year.ID
		summary.AcademicYearID = &year.ID
		summary.AcademicYearName = &year.Name
	case err != nil && !isNoRows(err):
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current academic year")
	}

	return readThrough(ctx, s.cache, dashboardCacheKey(yearID), s.cfg.CacheTTL, func(ctx context.Context) (*models.DashboardSummary, error) {
		counts, err := s.counter.Counts(ctx, yearID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard counts")
		}
		summary.Students = counts.Students
		summary.Classes = counts.Classes
		summary.Catechists = counts.Catechists
		summary.ActiveSessions = counts.ActiveSessions
		summary.GeneratedAt = s.now().UTC()
		return summary, nil
	})
}
