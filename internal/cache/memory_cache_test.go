package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/insights/internal/models"
)

func TestInsightsCache_HitRequiresExactVersion(t *testing.T) {
	c := NewInsightsCache()
	v1 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Hour)
	result := &models.PortfolioInsights{PortfolioID: 42}

	c.Set(42, models.Period1Y, "SPX", v1, result)

	assert.Same(t, result, c.Get(42, models.Period1Y, "SPX", v1))
	// A newer ledger version must miss, never serve the stale result.
	assert.Nil(t, c.Get(42, models.Period1Y, "SPX", v2))
	// Different query dimensions are different entries.
	assert.Nil(t, c.Get(42, models.Period1M, "SPX", v1))
	assert.Nil(t, c.Get(42, models.Period1Y, "", v1))
	assert.Nil(t, c.Get(7, models.Period1Y, "SPX", v1))
}

func TestInsightsCache_SupersededVersionEvicted(t *testing.T) {
	c := NewInsightsCache()
	v1 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Hour)

	c.Set(42, models.Period1Y, "SPX", v1, &models.PortfolioInsights{PortfolioID: 42})
	assert.Equal(t, 1, c.Len())

	c.Set(42, models.Period1Y, "SPX", v2, &models.PortfolioInsights{PortfolioID: 42})

	// The old version is gone, not accumulated.
	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.Get(42, models.Period1Y, "SPX", v1))
	assert.NotNil(t, c.Get(42, models.Period1Y, "SPX", v2))
}

func TestInsightsCache_Clear(t *testing.T) {
	c := NewInsightsCache()
	v := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	c.Set(1, models.PeriodAll, "", v, &models.PortfolioInsights{PortfolioID: 1})
	c.Set(2, models.PeriodAll, "", v, &models.PortfolioInsights{PortfolioID: 2})
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Get(1, models.PeriodAll, "", v))
}
