package services

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	tradingDaysPerYear = 252
	// varMinObservations is the smallest historical sample from which a 5th
	// percentile is meaningful.
	varMinObservations = 20
)

// RiskResult holds risk metrics at full float precision. Nil means the
// sample was too small for the metric; zero is a legitimate value and is
// never used as a stand-in.
type RiskResult struct {
	VolatilityPct        *float64
	SharpeRatio          *float64
	MaxDrawdownPct       float64
	MaxDrawdownTrough    *time.Time
	DownsideDeviationPct *float64
	VaR95Pct             *float64
}

// ComputeRisk derives risk metrics from the flow-adjusted daily return
// series and the raw value series. riskFreeRatePct is the annual risk-free
// rate in percent.
func ComputeRisk(series []DailyValue, dailyReturns []float64, annualizedReturnPct *float64, riskFreeRatePct float64) RiskResult {
	res := RiskResult{}

	if len(dailyReturns) >= 2 {
		vol := stat.StdDev(dailyReturns, nil) * math.Sqrt(tradingDaysPerYear) * 100
		res.VolatilityPct = &vol

		if vol > 0 && annualizedReturnPct != nil {
			sharpe := (*annualizedReturnPct - riskFreeRatePct) / vol
			res.SharpeRatio = &sharpe
		}
	}

	res.MaxDrawdownPct, res.MaxDrawdownTrough = maxDrawdown(series)

	if dd := downsideDeviation(dailyReturns); dd != nil {
		res.DownsideDeviationPct = dd
	}

	if v := historicalVaR95(dailyReturns); v != nil {
		res.VaR95Pct = v
	}

	return res
}

// maxDrawdown tracks the largest peak-to-trough decline via a running
// maximum. It is >= 0 always and 0 exactly when the series never falls
// below a prior peak.
func maxDrawdown(series []DailyValue) (float64, *time.Time) {
	if len(series) == 0 {
		return 0, nil
	}

	peak := series[0].Value
	maxDD := 0.0
	var trough *time.Time

	for i := 1; i < len(series); i++ {
		v := series[i].Value
		if v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak * 100
		if dd > maxDD {
			maxDD = dd
			d := series[i].Date
			trough = &d
		}
	}

	return maxDD, trough
}

// downsideDeviation is the annualized standard deviation of the negative
// returns only. Nil with fewer than two loss observations.
func downsideDeviation(dailyReturns []float64) *float64 {
	var losses []float64
	for _, r := range dailyReturns {
		if r < 0 {
			losses = append(losses, r)
		}
	}
	if len(losses) < 2 {
		return nil
	}
	dd := stat.StdDev(losses, nil) * math.Sqrt(tradingDaysPerYear) * 100
	return &dd
}

// historicalVaR95 is the 5th percentile of the historical daily-return
// distribution (historical simulation, not parametric), at the 1-day
// horizon. Nil below varMinObservations.
func historicalVaR95(dailyReturns []float64) *float64 {
	if len(dailyReturns) < varMinObservations {
		return nil
	}
	sorted := make([]float64, len(dailyReturns))
	copy(sorted, dailyReturns)
	sort.Float64s(sorted)

	v := stat.Quantile(0.05, stat.Empirical, sorted, nil) * 100
	return &v
}
