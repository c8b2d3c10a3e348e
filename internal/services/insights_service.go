package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/insights/internal/cache"
	"github.com/quantfolio/insights/internal/models"
	"github.com/quantfolio/insights/internal/repository"
	"github.com/quantfolio/insights/internal/util"
)

// performerLimit caps the top/worst performer rankings
const performerLimit = 5

// InsightsService orchestrates the calculators into one immutable
// PortfolioInsights result per (portfolio, period, benchmark) query. It is
// stateless apart from the memoization cache, which is keyed by the ledger
// version so results can never outlive the transactions they were computed
// from.
type InsightsService struct {
	txRepo          *repository.TransactionRepository
	assetRepo       *repository.AssetRepository
	pricingSvc      *PricingService
	valuationSvc    *ValuationService
	resultCache     *cache.InsightsCache
	riskFreeRatePct float64
	now             func() time.Time
}

// NewInsightsService creates a new InsightsService. riskFreeRatePct is the
// annual risk-free rate in percent used for Sharpe.
func NewInsightsService(
	txRepo *repository.TransactionRepository,
	assetRepo *repository.AssetRepository,
	pricingSvc *PricingService,
	valuationSvc *ValuationService,
	resultCache *cache.InsightsCache,
	riskFreeRatePct float64,
) *InsightsService {
	return &InsightsService{
		txRepo:          txRepo,
		assetRepo:       assetRepo,
		pricingSvc:      pricingSvc,
		valuationSvc:    valuationSvc,
		resultCache:     resultCache,
		riskFreeRatePct: riskFreeRatePct,
		now:             time.Now,
	}
}

// GetPortfolioInsights computes (or returns memoized) insights for the
// portfolio over the period, compared against benchmarkSymbol.
func (s *InsightsService) GetPortfolioInsights(ctx context.Context, portfolioID int64, period models.Period, benchmarkSymbol string) (*models.PortfolioInsights, error) {
	defer TrackTime("GetPortfolioInsights", time.Now())

	baseCurrency, err := s.txRepo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	ledgerVersion, err := s.txRepo.LatestUpdate(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	if cached := s.resultCache.Get(portfolioID, period, benchmarkSymbol, ledgerVersion); cached != nil {
		return cached, nil
	}

	ctx, wc := NewWarningContext(ctx)

	insights, err := s.compute(ctx, portfolioID, period, benchmarkSymbol, baseCurrency)
	if err != nil {
		return nil, err
	}

	insights.Warnings = sortedWarnings(wc.GetWarnings())
	s.resultCache.Set(portfolioID, period, benchmarkSymbol, ledgerVersion, insights)
	return insights, nil
}

func (s *InsightsService) compute(ctx context.Context, portfolioID int64, period models.Period, benchmarkSymbol, baseCurrency string) (*models.PortfolioInsights, error) {
	first, err := s.txRepo.FirstActivity(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNoActivity
	}

	startDate, endDate := period.Resolve(s.now(), *first)
	if startDate.Before(util.Day(*first)) && period != models.PeriodAll {
		startDate = util.Day(*first)
		AddWarning(ctx, models.Warning{
			Code:    models.WarnStartDateAdjusted,
			Message: fmt.Sprintf("The start date was adjusted to %s, the portfolio's first transaction.", startDate.Format("2006-01-02")),
		})
	}

	txs, err := s.txRepo.ListByPortfolio(ctx, portfolioID, endDate)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNoActivity
	}

	assetIDSet := make(map[int64]bool)
	for _, t := range txs {
		if t.Type == models.TransactionConversionIn || t.Type == models.TransactionConversionOut {
			continue
		}
		assetIDSet[t.AssetID] = true
	}
	assetIDs := make([]int64, 0, len(assetIDSet))
	for id := range assetIDSet {
		assetIDs = append(assetIDs, id)
	}
	sort.Slice(assetIDs, func(i, j int) bool { return assetIDs[i] < assetIDs[j] })

	assets, err := s.assetRepo.GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	splits, err := s.txRepo.ListSplits(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	// Batch-fetch the external inputs once per query, in parallel: asset
	// bars, benchmark bars, FX rates. Each is I/O bound and independent.
	var (
		bars      map[int64][]models.PriceBar
		benchBars []models.BenchmarkBar
		fxRates   map[string][]models.FXRate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gerr error
		bars, gerr = s.pricingSvc.GetAssetBars(gctx, assets, startDate, endDate)
		return gerr
	})
	if benchmarkSymbol != "" {
		g.Go(func() error {
			var gerr error
			benchBars, gerr = s.pricingSvc.GetBenchmarkBars(gctx, benchmarkSymbol, startDate, endDate)
			return gerr
		})
	}
	g.Go(func() error {
		pairs := fxPairs(assets, txs, baseCurrency)
		var gerr error
		fxRates, gerr = s.pricingSvc.GetFXRates(gctx, pairs, startDate, endDate)
		return gerr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.assemble(ctx, assembleInput{
		portfolioID:     portfolioID,
		period:          period,
		benchmarkSymbol: benchmarkSymbol,
		baseCurrency:    baseCurrency,
		startDate:       startDate,
		endDate:         endDate,
		txs:             txs,
		splits:          splits,
		assets:          assets,
		bars:            bars,
		benchBars:       benchBars,
		fxRates:         fxRates,
	})
}

// assembleInput carries a query's fully fetched inputs; everything from here
// on is pure computation over them.
type assembleInput struct {
	portfolioID     int64
	period          models.Period
	benchmarkSymbol string
	baseCurrency    string
	startDate       time.Time
	endDate         time.Time
	txs             []models.Transaction
	splits          []models.SplitEvent
	assets          map[int64]*models.Asset
	bars            map[int64][]models.PriceBar
	benchBars       []models.BenchmarkBar
	fxRates         map[string][]models.FXRate
}

// assemble runs the calculator pipeline over already-fetched inputs:
// valuation, performance, risk, benchmark, allocation, performers, then the
// decimal presentation. Identical inputs produce identical output.
func (s *InsightsService) assemble(ctx context.Context, in assembleInput) (*models.PortfolioInsights, error) {
	valuation, err := s.valuationSvc.BuildSeries(ctx, in.txs, in.splits, in.assets, in.bars, in.fxRates, in.baseCurrency, in.startDate, in.endDate)
	if err != nil {
		return nil, err
	}
	if len(valuation.Series) == 0 {
		return nil, ErrNoPriceableHoldings
	}

	perf := ComputePerformance(valuation.Series, valuation.Flows, in.startDate, in.endDate)

	// Remaining calculators are independent of one another; fan out.
	var (
		risk      RiskResult
		benchmark BenchmarkResult
		alloc     AllocationResult
	)
	mg, mctx := errgroup.WithContext(ctx)
	mg.Go(func() error {
		risk = ComputeRisk(valuation.Series, perf.DailyReturns, perf.AnnualizedReturnPct, s.riskFreeRatePct)
		return mctx.Err()
	})
	if in.benchmarkSymbol != "" {
		mg.Go(func() error {
			benchmark = CompareToBenchmark(mctx, valuation.Series, in.benchBars, in.benchmarkSymbol)
			return mctx.Err()
		})
	}
	mg.Go(func() error {
		alloc = ComputeAllocation(valuation.PositionValue, in.assets)
		return mctx.Err()
	})
	if err := mg.Wait(); err != nil {
		return nil, err
	}

	top, worst := s.performers(ctx, valuation, in.assets, in.bars, in.splits, in.startDate)

	insights := s.present(in.portfolioID, in.period, in.baseCurrency, in.startDate, in.endDate, valuation, perf, risk, alloc, in.assets)
	if in.benchmarkSymbol != "" {
		insights.Benchmark = presentBenchmark(benchmark)
	}
	insights.TopPerformers = top
	insights.WorstPerformers = worst
	return insights, nil
}

// performers ranks currently-held assets by their split-adjusted price
// return over the period.
func (s *InsightsService) performers(ctx context.Context, valuation *ValuationResult, assets map[int64]*models.Asset, bars map[int64][]models.PriceBar, splits []models.SplitEvent, startDate time.Time) ([]models.PerformerEntry, []models.PerformerEntry) {
	splitsByAsset := make(map[int64][]models.SplitEvent)
	for _, sp := range splits {
		splitsByAsset[sp.AssetID] = append(splitsByAsset[sp.AssetID], sp)
	}

	type assetReturn struct {
		assetID int64
		symbol  string
		pct     float64
	}
	var returns []assetReturn
	for assetID, pos := range valuation.Positions {
		if pos.Quantity <= 0 {
			continue
		}
		asset := assets[assetID]
		assetBars := bars[assetID]
		// Bars are read with a pre-period seed for carry-forward pricing;
		// performer returns only cover the period itself.
		for len(assetBars) > 0 && assetBars[0].Date.Before(startDate) {
			assetBars = assetBars[1:]
		}
		if asset == nil || len(assetBars) < 2 {
			continue
		}

		firstBar, lastBar := assetBars[0], assetBars[len(assetBars)-1]
		if firstBar.Close <= 0 {
			continue
		}
		// Rescale the first close into the last close's share-count terms so
		// a mid-period split doesn't masquerade as a crash.
		ratio := CumulativeSplitRatio(ctx, splitsByAsset[assetID], lastBar.Date) /
			CumulativeSplitRatio(ctx, splitsByAsset[assetID], firstBar.Date)
		adjustedFirst := firstBar.Close / ratio
		if adjustedFirst <= 0 {
			continue
		}
		pct := (lastBar.Close/adjustedFirst - 1) * 100
		returns = append(returns, assetReturn{assetID: assetID, symbol: asset.Symbol, pct: pct})
	}

	sort.Slice(returns, func(i, j int) bool {
		if returns[i].pct != returns[j].pct {
			return returns[i].pct > returns[j].pct
		}
		return returns[i].symbol < returns[j].symbol
	})

	var top, worst []models.PerformerEntry
	for i := 0; i < len(returns) && i < performerLimit; i++ {
		top = append(top, models.PerformerEntry{
			AssetID:   returns[i].assetID,
			Symbol:    returns[i].symbol,
			ReturnPct: models.Dec(returns[i].pct, 4),
		})
	}
	for i := len(returns) - 1; i >= 0 && len(worst) < performerLimit; i-- {
		worst = append(worst, models.PerformerEntry{
			AssetID:   returns[i].assetID,
			Symbol:    returns[i].symbol,
			ReturnPct: models.Dec(returns[i].pct, 4),
		})
	}
	return top, worst
}

// present converts full-precision internals into the decimal-safe boundary
// aggregate. This is the only place rounding happens.
func (s *InsightsService) present(
	portfolioID int64,
	period models.Period,
	baseCurrency string,
	startDate, endDate time.Time,
	valuation *ValuationResult,
	perf PerformanceResult,
	risk RiskResult,
	alloc AllocationResult,
	assets map[int64]*models.Asset,
) *models.PortfolioInsights {
	series := make([]models.ValueSeriesPoint, len(valuation.Series))
	for i, p := range valuation.Series {
		series[i] = models.ValueSeriesPoint{
			Date:           p.Date.Format("2006-01-02"),
			PortfolioValue: models.Dec(p.Value, 2),
		}
	}

	var staleSymbols []string
	for _, assetID := range valuation.StaleAssets {
		if a := assets[assetID]; a != nil {
			staleSymbols = append(staleSymbols, a.Symbol)
		}
	}
	sort.Strings(staleSymbols)

	insights := &models.PortfolioInsights{
		PortfolioID:  portfolioID,
		Period:       period,
		BaseCurrency: baseCurrency,
		StartDate:    startDate.Format("2006-01-02"),
		EndDate:      endDate.Format("2006-01-02"),
		ValueSeries:  series,
		Performance: models.PerformanceInsights{
			StartValue:          models.Dec(perf.StartValue, 2),
			EndValue:            models.Dec(perf.EndValue, 2),
			NetExternalFlow:     models.Dec(perf.NetExternalFlow, 2),
			TotalReturn:         models.Dec(perf.TotalReturn, 2),
			TotalReturnPct:      models.Dec(perf.TotalReturnPct, 4),
			AnnualizedReturnPct: models.DecPtr(perf.AnnualizedReturnPct, 4),
			WinRatePct:          models.DecPtr(perf.WinRatePct, 4),
		},
		Risk: models.RiskInsights{
			VolatilityPct:        models.DecPtr(risk.VolatilityPct, 4),
			SharpeRatio:          models.DecPtr(risk.SharpeRatio, 4),
			MaxDrawdownPct:       models.Dec(risk.MaxDrawdownPct, 4),
			DownsideDeviationPct: models.DecPtr(risk.DownsideDeviationPct, 4),
			VaR95Pct:             models.DecPtr(risk.VaR95Pct, 4),
		},
		AssetAllocation:      presentBuckets(alloc.Asset),
		SectorAllocation:     presentBuckets(alloc.Sector),
		GeographicAllocation: presentBuckets(alloc.Geography),
		DiversificationScore: models.Dec(alloc.DiversificationScore, 1),
		StaleAssets:          staleSymbols,
	}

	if perf.BestDay != nil {
		insights.Performance.BestDay = &models.DayChange{
			Date:      perf.BestDay.Date.Format("2006-01-02"),
			ChangePct: models.Dec(perf.BestDay.ChangePct, 4),
		}
	}
	if perf.WorstDay != nil {
		insights.Performance.WorstDay = &models.DayChange{
			Date:      perf.WorstDay.Date.Format("2006-01-02"),
			ChangePct: models.Dec(perf.WorstDay.ChangePct, 4),
		}
	}
	if risk.MaxDrawdownTrough != nil {
		trough := risk.MaxDrawdownTrough.Format("2006-01-02")
		insights.Risk.MaxDrawdownTrough = &trough
	}

	return insights
}

func presentBenchmark(b BenchmarkResult) *models.BenchmarkInsights {
	out := &models.BenchmarkInsights{
		Symbol:             b.Symbol,
		PortfolioReturnPct: models.DecPtr(b.PortfolioReturnPct, 4),
		BenchmarkReturnPct: models.DecPtr(b.BenchmarkReturnPct, 4),
		AlphaPct:           models.DecPtr(b.AlphaPct, 4),
		Correlation:        models.DecPtr(b.Correlation, 4),
		Series:             []models.ValueSeriesPoint{},
	}
	for _, p := range b.Aligned {
		bv := models.Dec(p.BenchmarkIndex, 4)
		out.Series = append(out.Series, models.ValueSeriesPoint{
			Date:           p.Date.Format("2006-01-02"),
			PortfolioValue: models.Dec(p.PortfolioIndex, 4),
			BenchmarkValue: &bv,
		})
	}
	return out
}

func presentBuckets(buckets []AllocationBucket) []models.AllocationEntry {
	out := make([]models.AllocationEntry, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.AllocationEntry{
			Label:      b.Label,
			Value:      models.Dec(b.Value, 2),
			Percentage: models.Dec(b.Percentage, 4),
		})
	}
	return out
}

// fxPairs collects every currency appearing in assets or transactions that
// differs from the base, as "CUR/BASE" pairs, sorted and de-duplicated.
func fxPairs(assets map[int64]*models.Asset, txs []models.Transaction, baseCurrency string) []string {
	seen := make(map[string]bool)
	for _, a := range assets {
		if a.Currency != "" && a.Currency != baseCurrency {
			seen[a.Currency+"/"+baseCurrency] = true
		}
	}
	for _, t := range txs {
		if t.Currency != "" && t.Currency != baseCurrency {
			seen[t.Currency+"/"+baseCurrency] = true
		}
	}
	pairs := make([]string, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// sortedWarnings orders warnings by code then message and drops duplicates,
// so identical inputs yield byte-identical results regardless of goroutine
// interleaving. The same underlying defect can be observed from more than
// one calculation path; the reader needs to see it once.
func sortedWarnings(warnings []models.Warning) []models.Warning {
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Code != warnings[j].Code {
			return warnings[i].Code < warnings[j].Code
		}
		return warnings[i].Message < warnings[j].Message
	})
	out := warnings[:0]
	for i, w := range warnings {
		if i > 0 && w == warnings[i-1] {
			continue
		}
		out = append(out, w)
	}
	return out
}
