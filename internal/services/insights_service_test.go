package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/insights/internal/models"
)

func TestFXPairs(t *testing.T) {
	assets := map[int64]*models.Asset{
		1: {ID: 1, Symbol: "AAPL", Currency: "USD"},
		2: {ID: 2, Symbol: "SAP", Currency: "EUR"},
		3: {ID: 3, Symbol: "7203", Currency: "JPY"},
	}
	txs := []models.Transaction{
		{AssetID: 2, Currency: "EUR"},
		{AssetID: 9, Currency: "GBP"}, // a conversion leg in a third currency
		{AssetID: 1, Currency: "USD"},
	}

	pairs := fxPairs(assets, txs, "USD")

	// Sorted, de-duplicated, base currency itself excluded.
	assert.Equal(t, []string{"EUR/USD", "GBP/USD", "JPY/USD"}, pairs)

	assert.Empty(t, fxPairs(map[int64]*models.Asset{1: {Currency: "USD"}}, nil, "USD"))
}

func TestSortedWarnings(t *testing.T) {
	in := []models.Warning{
		{Code: models.WarnStalePrice, Message: "b"},
		{Code: models.WarnMalformedSplitRatio, Message: "z"},
		{Code: models.WarnStalePrice, Message: "a"},
		{Code: models.WarnMalformedSplitRatio, Message: "z"}, // duplicate
	}

	out := sortedWarnings(in)

	expected := []models.Warning{
		{Code: models.WarnMalformedSplitRatio, Message: "z"},
		{Code: models.WarnStalePrice, Message: "a"},
		{Code: models.WarnStalePrice, Message: "b"},
	}
	assert.Equal(t, expected, out)
}

// insightsFixture is a two-asset, benchmark-and-split scenario covering the
// whole calculator pipeline, including a malformed split ratio so warning
// collection is part of the run.
func insightsFixture() assembleInput {
	start, end := day(2025, 1, 2), day(2025, 1, 8)
	dates := []time.Time{day(2025, 1, 2), day(2025, 1, 3), day(2025, 1, 6), day(2025, 1, 7), day(2025, 1, 8)}

	tech, fin := strPtr("Technology"), strPtr("Financials")
	us, de := strPtr("United States"), strPtr("Germany")
	assets := map[int64]*models.Asset{
		1: {ID: 1, Symbol: "ACME", Class: models.AssetClassStock, Sector: tech, Country: us, Currency: "USD"},
		2: {ID: 2, Symbol: "BANK", Class: models.AssetClassStock, Sector: fin, Country: de, Currency: "USD"},
	}
	txs := []models.Transaction{
		{AssetID: 1, Date: dates[0], Type: models.TransactionBuy, Quantity: 10, Price: 100, Currency: "USD"},
		{AssetID: 2, Date: dates[1], Type: models.TransactionBuy, Quantity: 5, Price: 200, Currency: "USD"},
	}
	splits := []models.SplitEvent{
		{AssetID: 1, Date: dates[3], Ratio: "garbled"}, // parses as a 1:1 no-op, with a warning
	}
	bars := map[int64][]models.PriceBar{
		1: barsFor(1, map[time.Time]float64{
			dates[0]: 100, dates[1]: 102, dates[2]: 105, dates[3]: 104, dates[4]: 108,
		}),
		2: barsFor(2, map[time.Time]float64{
			dates[0]: 200, dates[1]: 200, dates[2]: 198, dates[3]: 202, dates[4]: 201,
		}),
	}
	var bench []models.BenchmarkBar
	for i, d := range dates {
		bench = append(bench, models.BenchmarkBar{Symbol: "SPX", Date: d, Close: 5000 + float64(i)*10})
	}

	return assembleInput{
		portfolioID:     42,
		period:          models.Period1M,
		benchmarkSymbol: "SPX",
		baseCurrency:    "USD",
		startDate:       start,
		endDate:         end,
		txs:             txs,
		splits:          splits,
		assets:          assets,
		bars:            bars,
		benchBars:       bench,
	}
}

func runAssemble(t *testing.T, svc *InsightsService, in assembleInput) *models.PortfolioInsights {
	t.Helper()
	ctx, wc := NewWarningContext(context.Background())
	insights, err := svc.assemble(ctx, in)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	insights.Warnings = sortedWarnings(wc.GetWarnings())
	return insights
}

// Two runs over identical inputs must serialize to byte-identical JSON,
// regardless of map iteration order or how the calculator goroutines
// interleave.
func TestAssemble_IdenticalInputsIdenticalJSON(t *testing.T) {
	svc := &InsightsService{valuationSvc: NewValuationService(5), riskFreeRatePct: 4.0, now: time.Now}

	first, err := json.Marshal(runAssemble(t, svc, insightsFixture()))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := json.Marshal(runAssemble(t, svc, insightsFixture()))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	assert.Equal(t, string(first), string(second))
}

func TestAssemble_FullPipeline(t *testing.T) {
	svc := &InsightsService{valuationSvc: NewValuationService(5), riskFreeRatePct: 4.0, now: time.Now}

	insights := runAssemble(t, svc, insightsFixture())

	assert.EqualValues(t, 42, insights.PortfolioID)
	assert.Equal(t, "USD", insights.BaseCurrency)
	assert.Equal(t, "2025-01-02", insights.StartDate)
	assert.Equal(t, "2025-01-08", insights.EndDate)
	assert.Len(t, insights.ValueSeries, 5)

	// Day 1: 10*100 = 1000. Day 5: 10*108 + 5*201 = 2085.
	assert.InDelta(t, 1000.0, insights.ValueSeries[0].PortfolioValue.InexactFloat64(), 1e-9)
	assert.InDelta(t, 2085.0, insights.ValueSeries[4].PortfolioValue.InexactFloat64(), 1e-9)

	// The day-2 BUY of BANK is the only external flow after the opening day.
	assert.InDelta(t, 1000.0, insights.Performance.NetExternalFlow.InexactFloat64(), 1e-9)

	if insights.Benchmark == nil {
		t.Fatal("expected a benchmark comparison")
	}
	assert.Equal(t, "SPX", insights.Benchmark.Symbol)
	assert.Len(t, insights.Benchmark.Series, 5)

	if len(insights.TopPerformers) != 2 || len(insights.WorstPerformers) != 2 {
		t.Fatalf("expected 2 performers each way, got %d/%d", len(insights.TopPerformers), len(insights.WorstPerformers))
	}
	assert.Equal(t, "ACME", insights.TopPerformers[0].Symbol) // +8% beats +0.5%
	assert.Equal(t, "BANK", insights.WorstPerformers[0].Symbol)

	assert.Len(t, insights.SectorAllocation, 2)
	assert.Len(t, insights.GeographicAllocation, 2)

	// The garbled split ratio surfaces exactly once even though both the
	// transaction adjuster and the bar rescaler parse it.
	var malformed int
	for _, w := range insights.Warnings {
		if w.Code == models.WarnMalformedSplitRatio {
			malformed++
		}
	}
	assert.Equal(t, 1, malformed)
}
