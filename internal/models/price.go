package models

import (
	"time"
)

// PriceBar represents one daily close for an asset, in its listing currency
type PriceBar struct {
	AssetID  int64     `json:"asset_id"`
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	Currency string    `json:"currency"`
}

// BenchmarkBar represents one daily close of a benchmark index or proxy ETF
type BenchmarkBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// FXRate represents one daily conversion rate from Base to Quote currency.
// 1 unit of Base buys Rate units of Quote.
type FXRate struct {
	Base  string    `json:"base"`
	Quote string    `json:"quote"`
	Date  time.Time `json:"date"`
	Rate  float64   `json:"rate"`
}

// PriceRange describes the contiguous span of daily bars cached for an asset,
// and when the provider should next be consulted.
type PriceRange struct {
	AssetID    int64
	StartDate  time.Time
	EndDate    time.Time
	NextUpdate time.Time
}
