package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/insights/internal/models"
	"github.com/quantfolio/insights/internal/util"
)

// DailyValue is one day of a value series, in the portfolio's base currency
type DailyValue struct {
	Date  time.Time
	Value float64
}

// ValuationResult is everything the downstream calculators need: the summed
// daily series, per-asset series, external cash flows by day, and end-of-
// period positions.
type ValuationResult struct {
	Series        []DailyValue
	AssetSeries   map[int64][]DailyValue
	Flows         map[time.Time]float64
	Positions     map[int64]models.AdjustedPosition
	PositionValue map[int64]float64
	StaleAssets   []int64
}

// ValuationService builds daily portfolio value series from adjusted
// transactions and batch-fetched prices. It holds no mutable state; a query
// may be abandoned at any per-asset boundary.
type ValuationService struct {
	staleToleranceDays int
}

// NewValuationService creates a ValuationService. staleToleranceDays is the
// number of trading days a price may be carried forward before the asset's
// contribution is flagged stale.
func NewValuationService(staleToleranceDays int) *ValuationService {
	return &ValuationService{staleToleranceDays: staleToleranceDays}
}

// BuildSeries produces one value point per trading day over [startDate,
// endDate]. Trading days are the union of bar dates across the portfolio's
// assets; per-asset valuation fans out since assets are independent.
func (s *ValuationService) BuildSeries(
	ctx context.Context,
	txs []models.Transaction,
	splits []models.SplitEvent,
	assets map[int64]*models.Asset,
	bars map[int64][]models.PriceBar,
	fxRates map[string][]models.FXRate,
	baseCurrency string,
	startDate, endDate time.Time,
) (*ValuationResult, error) {
	defer TrackTime("BuildSeries", time.Now())

	txsByAsset := make(map[int64][]models.Transaction)
	for _, t := range txs {
		if t.Type == models.TransactionConversionIn || t.Type == models.TransactionConversionOut {
			continue // cash flows only, no position
		}
		txsByAsset[t.AssetID] = append(txsByAsset[t.AssetID], t)
	}
	splitsByAsset := make(map[int64][]models.SplitEvent)
	for _, sp := range splits {
		splitsByAsset[sp.AssetID] = append(splitsByAsset[sp.AssetID], sp)
	}

	// Replay each asset's adjusted history into a quantity timeline and an
	// end-of-period position.
	timelines := make(map[int64]*positionTimeline)
	positions := make(map[int64]models.AdjustedPosition)
	for assetID, assetTxs := range txsByAsset {
		adjusted := AdjustTransactions(ctx, assetTxs, splitsByAsset[assetID])
		tl := replayPositions(ctx, assetID, adjusted)
		timelines[assetID] = tl
		positions[assetID] = tl.endPosition
	}

	dates := tradingDates(bars, startDate, endDate)
	if len(dates) == 0 {
		return &ValuationResult{
			Flows:         map[time.Time]float64{},
			AssetSeries:   map[int64][]DailyValue{},
			Positions:     positions,
			PositionValue: map[int64]float64{},
		}, nil
	}

	fx := newFXConverter(baseCurrency, fxRates)

	assetOrder := make([]int64, 0, len(timelines))
	for id := range timelines {
		assetOrder = append(assetOrder, id)
	}
	sort.Slice(assetOrder, func(i, j int) bool { return assetOrder[i] < assetOrder[j] })

	// Fan out per asset; each goroutine writes only its own slot.
	contributions := make([][]float64, len(assetOrder))
	stale := make([]bool, len(assetOrder))
	g, gctx := errgroup.WithContext(ctx)
	for i, assetID := range assetOrder {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			asset, ok := assets[assetID]
			if !ok {
				return fmt.Errorf("asset %d referenced by ledger but not found", assetID)
			}
			adj := newSplitAdjuster(gctx, splitsByAsset[assetID])
			values, isStale := s.valueAsset(gctx, timelines[assetID], asset, bars[assetID], adj, fx, dates)
			contributions[i] = values
			stale[i] = isStale
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make([]DailyValue, len(dates))
	assetSeries := make(map[int64][]DailyValue, len(assetOrder))
	for di, d := range dates {
		series[di] = DailyValue{Date: d}
	}
	for i, assetID := range assetOrder {
		points := make([]DailyValue, len(dates))
		for di := range dates {
			v := contributions[i][di]
			series[di].Value += v
			points[di] = DailyValue{Date: dates[di], Value: v}
		}
		assetSeries[assetID] = points
	}

	positionValue := make(map[int64]float64, len(assetOrder))
	last := len(dates) - 1
	for i, assetID := range assetOrder {
		positionValue[assetID] = contributions[i][last]
	}

	var staleAssets []int64
	for i, assetID := range assetOrder {
		if stale[i] {
			staleAssets = append(staleAssets, assetID)
		}
	}

	flows := s.externalFlows(ctx, txs, fx, startDate, endDate)

	return &ValuationResult{
		Series:        series,
		AssetSeries:   assetSeries,
		Flows:         flows,
		Positions:     positions,
		PositionValue: positionValue,
		StaleAssets:   staleAssets,
	}, nil
}

// valueAsset computes one asset's contribution for each trading date using
// carry-forward pricing. Quantities in the timeline are in current share
// terms, so each raw close is divided by the product of split ratios dated
// after the bar; the series then stays continuous across a split. Returns
// the per-date values and whether any valued date exceeded the stale
// tolerance.
func (s *ValuationService) valueAsset(
	ctx context.Context,
	tl *positionTimeline,
	asset *models.Asset,
	assetBars []models.PriceBar,
	adj *splitAdjuster,
	fx *fxConverter,
	dates []time.Time,
) ([]float64, bool) {
	values := make([]float64, len(dates))

	var lastBar *models.PriceBar
	barIdx := 0
	isStale := false
	fxWarned := false

	for di, date := range dates {
		for barIdx < len(assetBars) && !assetBars[barIdx].Date.After(date) {
			lastBar = &assetBars[barIdx]
			barIdx++
		}

		qty := tl.quantityAt(date)
		if qty == 0 {
			continue
		}
		if lastBar == nil {
			// Not yet listed or no data at all; nothing to contribute.
			continue
		}

		// Gap measured in trading days between the last known bar and this
		// date. Within tolerance the carry-forward is routine; beyond it the
		// contribution is still included but flagged stale.
		gap := util.TradingDaysBetween(lastBar.Date.AddDate(0, 0, 1), date)
		if gap > s.staleToleranceDays && !isStale {
			isStale = true
			AddWarning(ctx, models.Warning{
				Code: models.WarnStalePrice,
				Message: fmt.Sprintf("No price for %s since %s; values from %s onward use a stale price.",
					asset.Symbol, lastBar.Date.Format("2006-01-02"), date.Format("2006-01-02")),
			})
		}

		rate, ok := fx.rate(asset.Currency, date)
		if !ok {
			if !fxWarned {
				fxWarned = true
				AddWarning(ctx, models.Warning{
					Code:    models.WarnMissingFXRate,
					Message: fmt.Sprintf("No %s/%s rate on or before %s; %s contribution excluded until a rate exists.", asset.Currency, fx.base, date.Format("2006-01-02"), asset.Symbol),
				})
			}
			continue
		}

		values[di] = qty * lastBar.Close / adj.futureRatio(lastBar.Date) * rate
	}

	return values, isStale
}

// externalFlows aggregates BUY/SELL net cash and conversions by day, in base
// currency, for flow dates inside the period. Dividends and fees are
// performance, not flows.
func (s *ValuationService) externalFlows(ctx context.Context, txs []models.Transaction, fx *fxConverter, startDate, endDate time.Time) map[time.Time]float64 {
	flows := make(map[time.Time]float64)
	for i := range txs {
		t := &txs[i]
		day := util.Day(t.Date)
		if day.Before(startDate) || day.After(endDate) {
			continue
		}
		cash := t.NetCash()
		if cash == 0 {
			continue
		}
		rate, ok := fx.rate(t.Currency, day)
		if !ok {
			rate = 1.0
		}
		flows[day] += cash * rate
	}
	return flows
}

// tradingDates returns the sorted union of bar dates inside [startDate,
// endDate]: strictly increasing, no duplicates.
func tradingDates(bars map[int64][]models.PriceBar, startDate, endDate time.Time) []time.Time {
	seen := make(map[time.Time]bool)
	for _, assetBars := range bars {
		for _, b := range assetBars {
			d := util.Day(b.Date)
			if d.Before(startDate) || d.After(endDate) {
				continue
			}
			seen[d] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// positionTimeline is an asset's piecewise-constant quantity function plus
// its end state under average-cost accounting.
type positionTimeline struct {
	steps       []quantityStep
	endPosition models.AdjustedPosition
}

type quantityStep struct {
	date time.Time
	qty  float64
}

// quantityAt returns the held quantity as of end of the given day
func (tl *positionTimeline) quantityAt(date time.Time) float64 {
	qty := 0.0
	for _, st := range tl.steps {
		if st.date.After(date) {
			break
		}
		qty = st.qty
	}
	return qty
}

// replayPositions walks adjusted transactions oldest to newest, maintaining
// quantity and average cost. A SELL beyond the held quantity is a ledger
// defect: the position clamps at zero and a data-quality warning is raised,
// since aborting would take the whole history down with one bad row.
func replayPositions(ctx context.Context, assetID int64, adjusted []models.Transaction) *positionTimeline {
	tl := &positionTimeline{}
	qty := 0.0
	costBasis := 0.0

	for i := range adjusted {
		t := &adjusted[i]
		switch t.Type {
		case models.TransactionBuy:
			qty += t.Quantity
			costBasis += t.Quantity*t.Price + t.Fees
		case models.TransactionSell:
			sellQty := t.Quantity
			if sellQty > qty {
				AddWarning(ctx, models.Warning{
					Code: models.WarnOversell,
					Message: fmt.Sprintf("SELL of %.4f on %s exceeds %.4f held for asset %d; position clamped at zero.",
						t.Quantity, t.Date.Format("2006-01-02"), qty, assetID),
				})
				sellQty = qty
			}
			if qty > 0 {
				costBasis -= sellQty * (costBasis / qty)
			}
			qty -= sellQty
			if qty == 0 {
				costBasis = 0
			}
		default:
			continue
		}
		if costBasis < 0 {
			costBasis = 0
		}
		tl.steps = append(tl.steps, quantityStep{date: util.Day(t.Date), qty: qty})
	}

	avgCost := 0.0
	if qty > 0 {
		avgCost = costBasis / qty
	}
	tl.endPosition = models.AdjustedPosition{
		AssetID:   assetID,
		Quantity:  qty,
		AvgCost:   avgCost,
		CostBasis: costBasis,
	}
	return tl
}

// fxConverter resolves same-date conversion rates into the base currency,
// falling back to the nearest prior rate. Rates are looked up as of the
// price date, never a single end-of-period rate.
type fxConverter struct {
	base  string
	rates map[string][]models.FXRate // pair -> date ascending
}

func newFXConverter(base string, rates map[string][]models.FXRate) *fxConverter {
	return &fxConverter{base: base, rates: rates}
}

// rate returns the from->base conversion factor as of date
func (c *fxConverter) rate(from string, date time.Time) (float64, bool) {
	if from == c.base {
		return 1.0, true
	}
	series := c.rates[from+"/"+c.base]
	if len(series) == 0 {
		return 0, false
	}
	// Latest rate on or before date.
	idx := sort.Search(len(series), func(i int) bool { return series[i].Date.After(date) })
	if idx == 0 {
		return 0, false
	}
	return series[idx-1].Rate, true
}
