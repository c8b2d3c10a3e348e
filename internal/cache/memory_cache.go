package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantfolio/insights/internal/models"
)

// InsightsCache memoizes assembled insights in memory. Entries are keyed by
// the full input tuple including the ledger version, so a new transaction can
// never be served a stale result; superseded versions for the same query are
// evicted on write.
type InsightsCache struct {
	mu      sync.RWMutex
	entries map[string]*models.PortfolioInsights
	byQuery map[string]string // query key -> current full key
}

// NewInsightsCache creates an empty insights cache
func NewInsightsCache() *InsightsCache {
	return &InsightsCache{
		entries: make(map[string]*models.PortfolioInsights),
		byQuery: make(map[string]string),
	}
}

func queryKey(portfolioID int64, period models.Period, benchmark string) string {
	return fmt.Sprintf("%d|%s|%s", portfolioID, period, benchmark)
}

func fullKey(portfolioID int64, period models.Period, benchmark string, ledgerVersion time.Time) string {
	return fmt.Sprintf("%d|%s|%s|%d", portfolioID, period, benchmark, ledgerVersion.UnixNano())
}

// Get returns a cached result for the exact input tuple, or nil
func (c *InsightsCache) Get(portfolioID int64, period models.Period, benchmark string, ledgerVersion time.Time) *models.PortfolioInsights {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[fullKey(portfolioID, period, benchmark, ledgerVersion)]
}

// Set stores a result and evicts any entry for the same query computed
// against an older ledger version.
func (c *InsightsCache) Set(portfolioID int64, period models.Period, benchmark string, ledgerVersion time.Time, insights *models.PortfolioInsights) {
	qk := queryKey(portfolioID, period, benchmark)
	fk := fullKey(portfolioID, period, benchmark, ledgerVersion)

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byQuery[qk]; ok && prev != fk {
		delete(c.entries, prev)
	}
	c.byQuery[qk] = fk
	c.entries[fk] = insights
}

// Clear removes all cached results
func (c *InsightsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*models.PortfolioInsights)
	c.byQuery = make(map[string]string)
}

// Len reports the number of cached results
func (c *InsightsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
