package services

import (
	"sort"

	"github.com/quantfolio/insights/internal/models"
)

// AllocationBucket is one group's share of current portfolio value
type AllocationBucket struct {
	Label      string
	Value      float64
	Percentage float64
}

// AllocationResult groups currently held positions by asset, sector and
// country. Percentages within each grouping sum to 100 (within float
// rounding) whenever total value is positive.
type AllocationResult struct {
	Asset                []AllocationBucket
	Sector               []AllocationBucket
	Geography            []AllocationBucket
	TotalValue           float64
	DiversificationScore float64
}

// ComputeAllocation builds allocation breakdowns from end-of-period position
// values. Zero-quantity and worthless positions are excluded; assets with
// unknown sector or country land in an "Unknown" bucket so totals still
// close at 100%.
func ComputeAllocation(positionValue map[int64]float64, assets map[int64]*models.Asset) AllocationResult {
	res := AllocationResult{}

	type weighted struct {
		label string
		value float64
	}
	var held []weighted
	sectorTotals := make(map[string]float64)
	countryTotals := make(map[string]float64)

	for assetID, value := range positionValue {
		if value <= 0 {
			continue
		}
		asset := assets[assetID]
		if asset == nil {
			continue
		}
		held = append(held, weighted{label: asset.Symbol, value: value})
		sectorTotals[asset.SectorOrUnknown()] += value
		countryTotals[asset.CountryOrUnknown()] += value
		res.TotalValue += value
	}

	if res.TotalValue <= 0 {
		return res
	}

	for _, h := range held {
		res.Asset = append(res.Asset, AllocationBucket{
			Label:      h.label,
			Value:      h.value,
			Percentage: h.value / res.TotalValue * 100,
		})
	}
	res.Sector = bucketize(sectorTotals, res.TotalValue)
	res.Geography = bucketize(countryTotals, res.TotalValue)
	sortBuckets(res.Asset)

	res.DiversificationScore = diversificationScore(res.Asset, res.Sector, res.Geography)
	return res
}

func bucketize(totals map[string]float64, totalValue float64) []AllocationBucket {
	buckets := make([]AllocationBucket, 0, len(totals))
	for label, value := range totals {
		buckets = append(buckets, AllocationBucket{
			Label:      label,
			Value:      value,
			Percentage: value / totalValue * 100,
		})
	}
	sortBuckets(buckets)
	return buckets
}

// sortBuckets orders by value descending, label ascending on ties, so the
// same inputs always produce the same output bytes.
func sortBuckets(buckets []AllocationBucket) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Value != buckets[j].Value {
			return buckets[i].Value > buckets[j].Value
		}
		return buckets[i].Label < buckets[j].Label
	})
}

// effectiveCount is the inverse Herfindahl-Hirschman index over the bucket
// weights: the number of equally-weighted holdings with the same
// concentration. One dominant position drags it toward 1 no matter how many
// small positions pad the list.
func effectiveCount(buckets []AllocationBucket) float64 {
	hhi := 0.0
	for _, b := range buckets {
		w := b.Percentage / 100
		hhi += w * w
	}
	if hhi == 0 {
		return 0
	}
	return 1 / hhi
}

// diversificationScore composes asset, sector and geography concentration
// into a 0-100 score. Full marks need roughly ten effective holdings across
// five effective sectors and four effective countries; both a dominant
// single position and a single-sector pile-up are penalized.
func diversificationScore(asset, sector, geography []AllocationBucket) float64 {
	assetComponent := normalize(effectiveCount(asset), 10)
	sectorComponent := normalize(effectiveCount(sector), 5)
	geoComponent := normalize(effectiveCount(geography), 4)

	return 100 * (0.5*assetComponent + 0.3*sectorComponent + 0.2*geoComponent)
}

// normalize maps an effective count onto [0, 1] with full credit at target
func normalize(effective, target float64) float64 {
	if effective <= 1 {
		return 0
	}
	v := (effective - 1) / (target - 1)
	if v > 1 {
		return 1
	}
	return v
}
