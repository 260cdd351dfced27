package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/internal/repository"
)

type stubDashboardCounter struct {
	counts *repository.DashboardCounts
	yearID string
	calls  int
	err    error
}

func (s *stubDashboardCounter) Counts(ctx context.Context, academicYearID string) (*repository.DashboardCounts, error) {
	s.calls++
	s.yearID = academicYearID
	if s.err != nil {
		return nil, s.err
	}
	return s.counts, nil
}

type stubCurrentYear struct {
	year *models.AcademicYear
	err  error
}

func (s *stubCurrentYear) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	return s.year, s.err
}

type failingCacheRepo struct{}

func (failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis down")
}

func (failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingCacheRepo) Delete(ctx context.Context, keys ...string) error {
	return errors.New("redis down")
}

func (failingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis down")
}

func TestDashboardServiceSummaryCaches(t *testing.T) {
	counter := &stubDashboardCounter{counts: &repository.DashboardCounts{Students: 120, Classes: 8, Catechists: 15, ActiveSessions: 2}}
	cache, repo := newMemoryCache()
	svc := NewDashboardService(DashboardServiceParams{
		Counter: counter,
		Years:   &stubCurrentYear{year: &models.AcademicYear{ID: "y1", Name: "2024-2025"}},
		Cache:   cache,
	})

	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 120, summary.Students)
	assert.Equal(t, 2, summary.ActiveSessions)
	require.NotNil(t, summary.AcademicYearName)
	assert.Equal(t, "2024-2025", *summary.AcademicYearName)
	assert.Equal(t, "y1", counter.yearID)
	assert.Contains(t, repo.items, dashboardCacheKey("y1"))

	_, hit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, counter.calls)
}

func TestDashboardServiceSummaryWithoutCurrentYear(t *testing.T) {
	counter := &stubDashboardCounter{counts: &repository.DashboardCounts{Catechists: 3}}
	svc := NewDashboardService(DashboardServiceParams{
		Counter: counter,
		Years:   &stubCurrentYear{err: sql.ErrNoRows},
	})

	summary, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary.AcademicYearID)
	assert.Equal(t, "", counter.yearID)
	assert.Equal(t, 3, summary.Catechists)
}

func TestDashboardServiceSummarySurvivesCacheOutage(t *testing.T) {
	counter := &stubDashboardCounter{counts: &repository.DashboardCounts{Students: 1}}
	svc := NewDashboardService(DashboardServiceParams{
		Counter: counter,
		Years:   &stubCurrentYear{year: &models.AcademicYear{ID: "y1"}},
		Cache:   NewCacheService(failingCacheRepo{}, nil, time.Minute, nil, true),
	})

	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, summary.Students)
}
