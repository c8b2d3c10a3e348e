package models

// WarningCode categorizes warnings by subsystem.
// W1xxx = ledger/adjustment, W2xxx = pricing, W3xxx = validation, W4xxx = benchmark.
type WarningCode string

const (
	WarnMalformedSplitRatio WarningCode = "W1001" // split ratio failed to parse; treated as 1:1 no-op
	WarnOversell            WarningCode = "W1002" // SELL exceeded held quantity; position clamped at zero
	WarnStalePrice          WarningCode = "W2001" // price gap exceeded the carry-forward tolerance
	WarnMissingFXRate       WarningCode = "W2002" // FX rate missing for a date; nearest prior rate used
	WarnStartDateAdjusted   WarningCode = "W3001" // start date clamped to the portfolio's first activity
	WarnBenchmarkMismatch   WarningCode = "W4001" // benchmark shares no trading dates with the portfolio
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
