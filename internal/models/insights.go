package models

import (
	"github.com/shopspring/decimal"
)

// Numeric fields on the insights aggregate are shopspring decimals, which
// marshal as quoted fixed-point strings. Callers parse them as arbitrary
// precision decimals; native-float parsing would reintroduce the rounding
// drift the engine avoids internally.

// Dec converts an internally-precise float to a presentation decimal with the
// given number of fractional places.
func Dec(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// DecPtr is Dec for nullable metrics; nil stays nil (serialized as JSON null,
// never masked as zero).
func DecPtr(v *float64, places int32) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := Dec(*v, places)
	return &d
}

// ValueSeriesPoint is one trading day of the portfolio value series, in the
// portfolio's base currency. BenchmarkValue is present only on points aligned
// with the benchmark series.
type ValueSeriesPoint struct {
	Date           string           `json:"date"`
	PortfolioValue decimal.Decimal  `json:"portfolio_value"`
	BenchmarkValue *decimal.Decimal `json:"benchmark_value,omitempty"`
}

// DayChange records a single-day percentage move and the date it happened
type DayChange struct {
	Date      string          `json:"date"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// PerformanceInsights contains period return metrics, time-weighted
type PerformanceInsights struct {
	StartValue          decimal.Decimal  `json:"start_value"`
	EndValue            decimal.Decimal  `json:"end_value"`
	NetExternalFlow     decimal.Decimal  `json:"net_external_flow"`
	TotalReturn         decimal.Decimal  `json:"total_return"`
	TotalReturnPct      decimal.Decimal  `json:"total_return_pct"`
	AnnualizedReturnPct *decimal.Decimal `json:"annualized_return_pct"`
	BestDay             *DayChange       `json:"best_day"`
	WorstDay            *DayChange       `json:"worst_day"`
	WinRatePct          *decimal.Decimal `json:"win_rate_pct"`
}

// RiskInsights contains risk metrics derived from the daily return series.
// Nullable fields are null when the sample is too small for the metric, which
// is distinct from a legitimate zero.
type RiskInsights struct {
	VolatilityPct        *decimal.Decimal `json:"volatility_pct"`
	SharpeRatio          *decimal.Decimal `json:"sharpe_ratio"`
	MaxDrawdownPct       decimal.Decimal  `json:"max_drawdown_pct"`
	MaxDrawdownTrough    *string          `json:"max_drawdown_trough"`
	DownsideDeviationPct *decimal.Decimal `json:"downside_deviation_pct"`
	VaR95Pct             *decimal.Decimal `json:"var_95_pct"`
}

// BenchmarkInsights compares the portfolio against a benchmark over the
// intersection of their trading dates, both indexed to 100 at the first
// common date.
type BenchmarkInsights struct {
	Symbol             string             `json:"symbol"`
	PortfolioReturnPct *decimal.Decimal   `json:"portfolio_return_pct"`
	BenchmarkReturnPct *decimal.Decimal   `json:"benchmark_return_pct"`
	AlphaPct           *decimal.Decimal   `json:"alpha_pct"`
	Correlation        *decimal.Decimal   `json:"correlation"`
	Series             []ValueSeriesPoint `json:"series"`
}

// AllocationEntry is one bucket of an allocation breakdown
type AllocationEntry struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

// PerformerEntry is one asset's period return, used for top/worst rankings
type PerformerEntry struct {
	AssetID   int64           `json:"asset_id"`
	Symbol    string          `json:"symbol"`
	ReturnPct decimal.Decimal `json:"return_pct"`
}

// PortfolioInsights is the aggregate engine result for one
// (portfolio, period, benchmark) query. Constructed fresh per query and
// never mutated afterwards; safe to cache keyed by the ledger version.
type PortfolioInsights struct {
	PortfolioID          int64               `json:"portfolio_id"`
	Period               Period              `json:"period"`
	BaseCurrency         string              `json:"base_currency"`
	StartDate            string              `json:"start_date"`
	EndDate              string              `json:"end_date"`
	ValueSeries          []ValueSeriesPoint  `json:"value_series"`
	Performance          PerformanceInsights `json:"performance"`
	Risk                 RiskInsights        `json:"risk"`
	Benchmark            *BenchmarkInsights  `json:"benchmark_comparison,omitempty"`
	AssetAllocation      []AllocationEntry   `json:"asset_allocation"`
	SectorAllocation     []AllocationEntry   `json:"sector_allocation"`
	GeographicAllocation []AllocationEntry   `json:"geographic_allocation"`
	TopPerformers        []PerformerEntry    `json:"top_performers"`
	WorstPerformers      []PerformerEntry    `json:"worst_performers"`
	DiversificationScore decimal.Decimal     `json:"diversification_score"`
	StaleAssets          []string            `json:"stale_assets,omitempty"`
	Warnings             []Warning           `json:"warnings,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
