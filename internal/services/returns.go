package services

import (
	"math"
	"sort"
	"time"

	"github.com/quantfolio/insights/internal/util"
)

// DayChangeResult records a single-day percentage move
type DayChangeResult struct {
	Date      time.Time
	ChangePct float64
}

// PerformanceResult holds period return metrics at full float precision.
// Percentages are in percent units (1.5 == +1.5%); rounding happens at
// presentation.
type PerformanceResult struct {
	StartValue          float64
	EndValue            float64
	NetExternalFlow     float64
	TotalReturn         float64
	TotalReturnPct      float64
	AnnualizedReturnPct *float64
	BestDay             *DayChangeResult
	WorstDay            *DayChangeResult
	WinRatePct          *float64
	// DailyReturns are the flow-adjusted simple daily returns (fractions,
	// not percent), shared with the risk calculator so Sharpe and
	// volatility stay consistent with the time-weighted return.
	DailyReturns []float64
}

// ComputePerformance derives time-weighted period returns from the value
// series and the external cash flows. Flows are treated as landing at the
// end of their day, so the day's return is measured before the flow:
//
//	r_t = (v_t - f_t) / v_{t-1} - 1
//
// and chaining the r_t geometrically ignores both the timing and the size
// of deposits and withdrawals, which is the point of the methodology: a
// mid-period deposit is not a gain.
func ComputePerformance(series []DailyValue, flows map[time.Time]float64, startDate, endDate time.Time) PerformanceResult {
	res := PerformanceResult{}
	if len(series) == 0 {
		return res
	}

	res.StartValue = series[0].Value
	res.EndValue = series[len(series)-1].Value

	aligned := alignFlows(series, flows)

	// Net external flow over the period with compensated summation: an
	// "all" period over years of small flows would otherwise drift.
	var flowSum, flowComp float64
	for _, f := range aligned {
		y := f - flowComp
		t := flowSum + y
		flowComp = (t - flowSum) - y
		flowSum = t
	}
	res.NetExternalFlow = flowSum

	res.TotalReturn = res.EndValue - res.StartValue - res.NetExternalFlow

	growth := 1.0
	positives, negatives := 0, 0
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Value
		if prev <= 0 {
			continue
		}
		flow := aligned[util.Day(series[i].Date)]
		r := (series[i].Value-flow)/prev - 1

		res.DailyReturns = append(res.DailyReturns, r)
		growth *= 1 + r

		pct := r * 100
		if res.BestDay == nil || pct > res.BestDay.ChangePct {
			res.BestDay = &DayChangeResult{Date: series[i].Date, ChangePct: pct}
		}
		if res.WorstDay == nil || pct < res.WorstDay.ChangePct {
			res.WorstDay = &DayChangeResult{Date: series[i].Date, ChangePct: pct}
		}
		if r > 0 {
			positives++
		} else if r < 0 {
			negatives++
		}
	}

	res.TotalReturnPct = (growth - 1) * 100

	if positives+negatives > 0 {
		winRate := float64(positives) / float64(positives+negatives) * 100
		res.WinRatePct = &winRate
	}

	periodDays := int(endDate.Sub(startDate).Hours() / 24)
	if periodDays >= 1 && len(res.DailyReturns) > 0 {
		annualized := (math.Pow(growth, 365.0/float64(periodDays)) - 1) * 100
		res.AnnualizedReturnPct = &annualized
	}

	return res
}

// alignFlows maps each external flow onto the first valued date on or after
// it, so weekend and holiday flows are charged against the next day with a
// price. Flows on or before the first valued date are starting capital and
// already embodied in the first value; flows after the last valued date have
// no day to land on. Both are dropped.
func alignFlows(series []DailyValue, flows map[time.Time]float64) map[time.Time]float64 {
	first := util.Day(series[0].Date)
	aligned := make(map[time.Time]float64, len(flows))
	for flowDay, f := range flows {
		idx := sort.Search(len(series), func(i int) bool {
			return !util.Day(series[i].Date).Before(flowDay)
		})
		if idx >= len(series) {
			continue
		}
		day := util.Day(series[idx].Date)
		if !day.After(first) {
			continue
		}
		aligned[day] += f
	}
	return aligned
}
