package models

import (
	"fmt"
	"time"
)

// TransactionType is a closed enum of ledger entry kinds.
type TransactionType string

const (
	TransactionBuy           TransactionType = "BUY"
	TransactionSell          TransactionType = "SELL"
	TransactionDividend      TransactionType = "DIVIDEND"
	TransactionFee           TransactionType = "FEE"
	TransactionConversionIn  TransactionType = "CONVERSION_IN"
	TransactionConversionOut TransactionType = "CONVERSION_OUT"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDividend,
		TransactionFee, TransactionConversionIn, TransactionConversionOut:
		return true
	}
	return false
}

// Transaction is a settled ledger entry. The engine never mutates it; split
// adjustment produces derived copies.
type Transaction struct {
	ID          int64           `json:"id"`
	PortfolioID int64           `json:"portfolio_id"`
	AssetID     int64           `json:"asset_id"`
	Date        time.Time       `json:"date"`
	Type        TransactionType `json:"type"`
	Quantity    float64         `json:"quantity"`
	Price       float64         `json:"price"`
	Fees        float64         `json:"fees"`
	Currency    string          `json:"currency"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NetCash returns the signed cash amount the transaction moves across the
// portfolio boundary, in the transaction's currency. Positive means money
// entered the measured portfolio (a deposit-like flow), negative means money
// left it. DIVIDEND and FEE are internal to performance and return 0.
func (t *Transaction) NetCash() float64 {
	switch t.Type {
	case TransactionBuy:
		return t.Quantity*t.Price + t.Fees
	case TransactionSell:
		return -(t.Quantity*t.Price - t.Fees)
	case TransactionConversionIn:
		return t.Quantity * t.Price
	case TransactionConversionOut:
		return -(t.Quantity * t.Price)
	case TransactionDividend, TransactionFee:
		return 0
	}
	return 0
}

// SplitEvent is a corporate action that rescales share counts. Ratio is
// stored as "N:D" (e.g. "2:1" for a forward split, "1:10" for a reverse
// split) and parsed by the adjuster.
type SplitEvent struct {
	ID      int64     `json:"id"`
	AssetID int64     `json:"asset_id"`
	Date    time.Time `json:"date"`
	Ratio   string    `json:"ratio"`
}

func (s *SplitEvent) String() string {
	return fmt.Sprintf("split asset=%d date=%s ratio=%s", s.AssetID, s.Date.Format("2006-01-02"), s.Ratio)
}

// AdjustedPosition is the derived holding state for one asset at a point in
// time. Owned and recomputed by the valuation builder on every query.
type AdjustedPosition struct {
	AssetID   int64   `json:"asset_id"`
	Quantity  float64 `json:"quantity"`
	AvgCost   float64 `json:"avg_cost"`
	CostBasis float64 `json:"cost_basis"`
}
