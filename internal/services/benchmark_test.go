package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/insights/internal/models"
)

func benchBars(symbol string, start time.Time, closes ...float64) []models.BenchmarkBar {
	out := make([]models.BenchmarkBar, len(closes))
	for i, c := range closes {
		out[i] = models.BenchmarkBar{Symbol: symbol, Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestCompareToBenchmark_IndexedAt100(t *testing.T) {
	ctx := context.Background()
	start := day(2025, 1, 2)
	port := series(start, 1000, 1050, 1100)
	bench := benchBars("SPX", start, 5000, 5100, 5150)

	res := CompareToBenchmark(ctx, port, bench, "SPX")

	if len(res.Aligned) != 3 {
		t.Fatalf("expected 3 aligned points, got %d", len(res.Aligned))
	}
	assert.InDelta(t, 100.0, res.Aligned[0].PortfolioIndex, 1e-9)
	assert.InDelta(t, 100.0, res.Aligned[0].BenchmarkIndex, 1e-9)
	assert.InDelta(t, 110.0, res.Aligned[2].PortfolioIndex, 1e-9)
	assert.InDelta(t, 103.0, res.Aligned[2].BenchmarkIndex, 1e-9)

	if res.PortfolioReturnPct == nil || res.BenchmarkReturnPct == nil || res.AlphaPct == nil {
		t.Fatal("expected return and alpha values")
	}
	assert.InDelta(t, 10.0, *res.PortfolioReturnPct, 1e-9)
	assert.InDelta(t, 3.0, *res.BenchmarkReturnPct, 1e-9)
	assert.InDelta(t, 7.0, *res.AlphaPct, 1e-9)
}

func TestCompareToBenchmark_InnerJoinSkipsMissingDates(t *testing.T) {
	ctx := context.Background()
	start := day(2025, 1, 2)
	port := series(start, 1000, 1050, 1100, 1150)
	// Benchmark is missing the middle two dates.
	bench := []models.BenchmarkBar{
		{Symbol: "SPX", Date: start, Close: 5000},
		{Symbol: "SPX", Date: start.AddDate(0, 0, 3), Close: 5500},
	}

	res := CompareToBenchmark(ctx, port, bench, "SPX")

	if len(res.Aligned) != 2 {
		t.Fatalf("expected 2 aligned points, got %d", len(res.Aligned))
	}
	assert.InDelta(t, 115.0, res.Aligned[1].PortfolioIndex, 1e-9)
	assert.InDelta(t, 110.0, res.Aligned[1].BenchmarkIndex, 1e-9)
}

func TestCompareToBenchmark_NoOverlap(t *testing.T) {
	ctx, wc := NewWarningContext(context.Background())
	port := series(day(2025, 1, 2), 1000, 1050)
	bench := benchBars("SPX", day(2024, 6, 2), 5000, 5100)

	res := CompareToBenchmark(ctx, port, bench, "SPX")

	assert.Empty(t, res.Aligned)
	assert.Nil(t, res.PortfolioReturnPct)
	assert.Nil(t, res.Correlation)

	warnings := wc.GetWarnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	assert.Equal(t, models.WarnBenchmarkMismatch, warnings[0].Code)
}

func TestCompareToBenchmark_PerfectCorrelation(t *testing.T) {
	ctx := context.Background()
	start := day(2025, 1, 2)
	// Portfolio moves in lockstep with the benchmark at 1/5 scale.
	port := series(start, 1000, 1020, 1010, 1040, 1035)
	bench := benchBars("SPX", start, 5000, 5100, 5050, 5200, 5175)

	res := CompareToBenchmark(ctx, port, bench, "SPX")

	if res.Correlation == nil {
		t.Fatal("expected a correlation")
	}
	assert.InDelta(t, 1.0, *res.Correlation, 1e-9)
}

func TestCompareToBenchmark_FlatBenchmarkHasNoCorrelation(t *testing.T) {
	ctx := context.Background()
	start := day(2025, 1, 2)
	port := series(start, 1000, 1020, 1010, 1040)
	bench := benchBars("BILL", start, 100, 100, 100, 100)

	res := CompareToBenchmark(ctx, port, bench, "BILL")

	// Benchmark returns have zero variance; the coefficient is undefined.
	assert.Nil(t, res.Correlation)
	if res.BenchmarkReturnPct == nil {
		t.Fatal("expected a benchmark return")
	}
	assert.InDelta(t, 0.0, *res.BenchmarkReturnPct, 1e-9)
}

func TestCompareToBenchmark_TooFewPointsForCorrelation(t *testing.T) {
	ctx := context.Background()
	start := day(2025, 1, 2)
	port := series(start, 1000, 1050)
	bench := benchBars("SPX", start, 5000, 5100)

	res := CompareToBenchmark(ctx, port, bench, "SPX")

	// A single daily return is not a sample; return figures still exist.
	assert.Nil(t, res.Correlation)
	assert.NotNil(t, res.PortfolioReturnPct)
}
