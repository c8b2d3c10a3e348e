package services

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/insights/internal/models"
	"github.com/quantfolio/insights/internal/util"
)

// AlignedPoint is one trading date shared by the portfolio and benchmark,
// both indexed to 100 at the first common date.
type AlignedPoint struct {
	Date           time.Time
	PortfolioIndex float64
	BenchmarkIndex float64
}

// BenchmarkResult compares the portfolio series against a benchmark over
// the intersection of their trading dates. A benchmark with no overlap
// yields an empty, nil-correlation result rather than a failure.
type BenchmarkResult struct {
	Symbol             string
	Aligned            []AlignedPoint
	PortfolioReturnPct *float64
	BenchmarkReturnPct *float64
	AlphaPct           *float64
	Correlation        *float64
}

// CompareToBenchmark aligns the two series with an inner join on date,
// indexes both at 100 on the first common date, and computes period returns,
// alpha and the Pearson correlation of the daily-return series.
func CompareToBenchmark(ctx context.Context, series []DailyValue, bench []models.BenchmarkBar, symbol string) BenchmarkResult {
	res := BenchmarkResult{Symbol: symbol}

	benchByDate := make(map[time.Time]float64, len(bench))
	for _, b := range bench {
		benchByDate[util.Day(b.Date)] = b.Close
	}

	var portValues, benchValues []float64
	var aligned []AlignedPoint
	for _, p := range series {
		close, ok := benchByDate[util.Day(p.Date)]
		if !ok || p.Value <= 0 || close <= 0 {
			continue
		}
		portValues = append(portValues, p.Value)
		benchValues = append(benchValues, close)
		aligned = append(aligned, AlignedPoint{Date: p.Date})
	}

	if len(aligned) == 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnBenchmarkMismatch,
			Message: fmt.Sprintf("Benchmark %s shares no trading dates with the portfolio in this period.", symbol),
		})
		return res
	}

	for i := range aligned {
		aligned[i].PortfolioIndex = portValues[i] / portValues[0] * 100
		aligned[i].BenchmarkIndex = benchValues[i] / benchValues[0] * 100
	}
	res.Aligned = aligned

	last := len(aligned) - 1
	portReturn := aligned[last].PortfolioIndex - 100
	benchReturn := aligned[last].BenchmarkIndex - 100
	alpha := portReturn - benchReturn
	res.PortfolioReturnPct = &portReturn
	res.BenchmarkReturnPct = &benchReturn
	res.AlphaPct = &alpha

	res.Correlation = dailyCorrelation(portValues, benchValues)
	return res
}

// dailyCorrelation is the Pearson correlation of the two daily-return
// series. Nil with fewer than two aligned returns or when either series has
// zero variance, where the coefficient is undefined.
func dailyCorrelation(portValues, benchValues []float64) *float64 {
	if len(portValues) < 3 {
		return nil
	}

	portReturns := make([]float64, 0, len(portValues)-1)
	benchReturns := make([]float64, 0, len(benchValues)-1)
	for i := 1; i < len(portValues); i++ {
		portReturns = append(portReturns, portValues[i]/portValues[i-1]-1)
		benchReturns = append(benchReturns, benchValues[i]/benchValues[i-1]-1)
	}

	if len(portReturns) < 2 {
		return nil
	}
	if stat.Variance(portReturns, nil) == 0 || stat.Variance(benchReturns, nil) == 0 {
		return nil
	}

	corr := stat.Correlation(portReturns, benchReturns, nil)
	return &corr
}
