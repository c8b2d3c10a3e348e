package models

import (
	"fmt"
	"time"
)

// Period is a closed set of query lookback windows
type Period string

const (
	Period1M  Period = "1m"
	Period3M  Period = "3m"
	Period6M  Period = "6m"
	PeriodYTD Period = "ytd"
	Period1Y  Period = "1y"
	PeriodAll Period = "all"
)

// ParsePeriod validates a period query parameter
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Period1M, Period3M, Period6M, PeriodYTD, Period1Y, PeriodAll:
		return Period(s), nil
	}
	return "", fmt.Errorf("invalid period %q (want 1m, 3m, 6m, ytd, 1y or all)", s)
}

// Resolve returns the [start, end] date range for the period, anchored at
// "now". PeriodAll starts at firstActivity, the portfolio's earliest
// transaction date. Results are truncated to whole UTC days.
func (p Period) Resolve(now time.Time, firstActivity time.Time) (time.Time, time.Time) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var start time.Time
	switch p {
	case Period1M:
		start = end.AddDate(0, -1, 0)
	case Period3M:
		start = end.AddDate(0, -3, 0)
	case Period6M:
		start = end.AddDate(0, -6, 0)
	case PeriodYTD:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case Period1Y:
		start = end.AddDate(-1, 0, 0)
	case PeriodAll:
		start = time.Date(firstActivity.Year(), firstActivity.Month(), firstActivity.Day(), 0, 0, 0, 0, time.UTC)
	default:
		start = end.AddDate(-1, 0, 0)
	}
	return start, end
}
