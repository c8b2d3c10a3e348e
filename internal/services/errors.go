package services

import "errors"

var (
	// ErrNoPriceableHoldings means no holding in the portfolio could be
	// priced anywhere in the requested period. This is one of the few
	// whole-query failures; individual metric gaps degrade to nulls.
	ErrNoPriceableHoldings = errors.New("no priceable holdings in period")

	// ErrNoActivity means the portfolio has no transactions at all, so no
	// period can be resolved against it.
	ErrNoActivity = errors.New("portfolio has no transactions")

	// ErrLookupTimeout means the price or FX provider did not answer within
	// its deadline and the period cannot be valued from cache alone.
	ErrLookupTimeout = errors.New("price or fx lookup timed out")

	// ErrBenchmarkNotFound means the benchmark symbol is unknown to both the
	// price store and the provider.
	ErrBenchmarkNotFound = errors.New("benchmark not found")
)
