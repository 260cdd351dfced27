package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
)

func TestCacheServiceInvalidateClassIsScoped(t *testing.T) {
	cache, repo := newMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, reportCacheKey("c1"), models.ClassReportSummary{ClassID: "c1"}, 0))
	require.NoError(t, cache.Set(ctx, reportCacheKey("c2"), models.ClassReportSummary{ClassID: "c2"}, 0))
	require.NoError(t, cache.Set(ctx, dashboardCacheKey(""), models.DashboardSummary{Students: 3}, 0))

	cache.InvalidateClass(ctx, "c1")

	assert.NotContains(t, repo.items, reportCacheKey("c1"))
	assert.Contains(t, repo.items, reportCacheKey("c2"))
	assert.NotContains(t, repo.items, "dashboard:summary:none")
}

func TestReadThroughLoadsOnceThenHits(t *testing.T) {
	cache, _ := newMemoryCache()
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (*models.DashboardSummary, error) {
		loads++
		return &models.DashboardSummary{Classes: 4}, nil
	}

	first, hit, err := readThrough(ctx, cache, "dashboard:summary:y1", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, first.Classes)

	second, hit, err := readThrough(ctx, cache, "dashboard:summary:y1", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, second.Classes)
	assert.Equal(t, 1, loads)
}

func TestReadThroughDisabledCacheAlwaysLoads(t *testing.T) {
	var cache *CacheService
	boom := errors.New("db down")

	_, _, err := readThrough(context.Background(), cache, "k", 0, func(context.Context) (*models.DashboardSummary, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
