package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/quantfolio/insights/internal/models"
)

// ParseSplitRatio resolves an "N:D" ratio string to N/D. A forward split
// ("2:1") is > 1, a reverse split ("1:10") is < 1. Malformed strings and
// zero denominators fail closed to 1.0 so one bad corporate-action row
// cannot corrupt unrelated history; the no-op is logged and surfaced as a
// data-quality warning, never applied silently.
func ParseSplitRatio(ctx context.Context, split *models.SplitEvent) float64 {
	num, den, ok := splitRatioParts(split.Ratio)
	if !ok {
		log.Warnf("malformed split ratio %q for asset %d on %s, treating as 1:1",
			split.Ratio, split.AssetID, split.Date.Format("2006-01-02"))
		AddWarning(ctx, models.Warning{
			Code: models.WarnMalformedSplitRatio,
			Message: fmt.Sprintf("Split ratio %q for asset %d on %s could not be parsed and was ignored.",
				split.Ratio, split.AssetID, split.Date.Format("2006-01-02")),
		})
		return 1.0
	}
	return num / den
}

func splitRatioParts(s string) (float64, float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if den == 0 || num <= 0 || den < 0 {
		return 0, 0, false
	}
	return num, den, true
}

// AdjustTransactions rewrites one asset's transactions into current
// share-count terms: each quantity is multiplied and each price divided by
// the cumulative ratio of every split dated on or after the transaction.
// A transaction dated exactly on a split's effective date is treated as
// occurring before the split, so the split applies to it.
//
// The inputs are not mutated; adjusted copies are returned sorted by
// transaction date, oldest first.
func AdjustTransactions(ctx context.Context, txs []models.Transaction, splits []models.SplitEvent) []models.Transaction {
	if len(txs) == 0 {
		return nil
	}

	adjusted := make([]models.Transaction, len(txs))
	copy(adjusted, txs)
	if len(splits) == 0 {
		return adjusted
	}

	ordered := make([]models.SplitEvent, len(splits))
	copy(ordered, splits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	// suffix[i] = product of ratios of splits i..end, i.e. the factor for a
	// transaction older than split i.
	suffix := make([]float64, len(ordered)+1)
	suffix[len(ordered)] = 1.0
	for i := len(ordered) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] * ParseSplitRatio(ctx, &ordered[i])
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].Date.Before(adjusted[j].Date)
	})

	next := 0 // first split not yet strictly before the current transaction
	for i := range adjusted {
		for next < len(ordered) && ordered[next].Date.Before(adjusted[i].Date) {
			next++
		}
		factor := suffix[next]
		if factor == 1.0 {
			continue
		}
		adjusted[i].Quantity *= factor
		adjusted[i].Price /= factor
	}

	return adjusted
}

// splitAdjuster rescales raw closing prices into current share terms. A
// close dated before a split must be divided by that split's ratio to be
// comparable with current-terms quantities; one printed on the split's
// effective date is already post-split.
type splitAdjuster struct {
	dates  []time.Time
	suffix []float64 // suffix[i] = product of ratios of splits i..end
}

func newSplitAdjuster(ctx context.Context, splits []models.SplitEvent) *splitAdjuster {
	ordered := make([]models.SplitEvent, len(splits))
	copy(ordered, splits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	a := &splitAdjuster{
		dates:  make([]time.Time, len(ordered)),
		suffix: make([]float64, len(ordered)+1),
	}
	a.suffix[len(ordered)] = 1.0
	for i := len(ordered) - 1; i >= 0; i-- {
		a.dates[i] = ordered[i].Date
		a.suffix[i] = a.suffix[i+1] * ParseSplitRatio(ctx, &ordered[i])
	}
	return a
}

// futureRatio returns the product of ratios of splits dated strictly after
// the given bar date.
func (a *splitAdjuster) futureRatio(date time.Time) float64 {
	idx := sort.Search(len(a.dates), func(i int) bool { return a.dates[i].After(date) })
	return a.suffix[idx]
}

// CumulativeSplitRatio returns the product of all split ratios with
// split.date <= the observation date, the factor relating the raw quantity
// held then to the share count observed now.
func CumulativeSplitRatio(ctx context.Context, splits []models.SplitEvent, observation time.Time) float64 {
	ratio := 1.0
	for i := range splits {
		if !splits[i].Date.After(observation) {
			ratio *= ParseSplitRatio(ctx, &splits[i])
		}
	}
	return ratio
}
