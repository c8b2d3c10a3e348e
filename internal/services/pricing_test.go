package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/insights/internal/models"
)

func TestDetermineFetch(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC) // Monday midday

	testCases := []struct {
		name          string
		priceRange    *models.PriceRange
		effectiveStart time.Time
		expectedFetch bool
		expectedSize  string
	}{
		{
			name:           "no cached range",
			priceRange:     nil,
			effectiveStart: day(2025, 1, 2),
			expectedFetch:  true,
			expectedSize:   "full",
		},
		{
			name: "fully covered and fresh",
			priceRange: &models.PriceRange{
				StartDate:  day(2020, 1, 2),
				EndDate:    day(2025, 6, 13),
				NextUpdate: now.Add(4 * time.Hour),
			},
			effectiveStart: day(2025, 1, 2),
			expectedFetch:  false,
		},
		{
			name: "covered but refresh due, recent end",
			priceRange: &models.PriceRange{
				StartDate:  day(2020, 1, 2),
				EndDate:    day(2025, 6, 13),
				NextUpdate: now.Add(-1 * time.Hour),
			},
			effectiveStart: day(2025, 1, 2),
			expectedFetch:  true,
			expectedSize:   "compact",
		},
		{
			name: "covered but refresh due, end far in the past",
			priceRange: &models.PriceRange{
				StartDate:  day(2020, 1, 2),
				EndDate:    day(2024, 1, 2),
				NextUpdate: now.Add(-1 * time.Hour),
			},
			effectiveStart: day(2025, 1, 2),
			expectedFetch:  true,
			expectedSize:   "full",
		},
		{
			name: "start before cached range forces fetch even when fresh",
			priceRange: &models.PriceRange{
				StartDate:  day(2024, 1, 2),
				EndDate:    day(2025, 6, 13),
				NextUpdate: now.Add(4 * time.Hour),
			},
			effectiveStart: day(2020, 1, 2),
			expectedFetch:  true,
			expectedSize:   "compact",
		},
		{
			name: "start uncovered and end long stale",
			priceRange: &models.PriceRange{
				StartDate:  day(2024, 1, 2),
				EndDate:    day(2024, 6, 13),
				NextUpdate: now.Add(4 * time.Hour),
			},
			effectiveStart: day(2020, 1, 2),
			expectedFetch:  true,
			expectedSize:   "full",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetch, size := DetermineFetch(tc.priceRange, now, tc.effectiveStart, day(2025, 6, 16))
			assert.Equal(t, tc.expectedFetch, fetch)
			if tc.expectedFetch {
				assert.Equal(t, tc.expectedSize, size)
			}
		})
	}
}

func TestSplitPair(t *testing.T) {
	base, quote, ok := splitPair("EUR/USD")
	assert.True(t, ok)
	assert.Equal(t, "EUR", base)
	assert.Equal(t, "USD", quote)

	_, _, ok = splitPair("EURUSD")
	assert.False(t, ok)
}
