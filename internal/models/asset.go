package models

import (
	"time"
)

// AssetClass represents the broad type of an asset
type AssetClass string

const (
	AssetClassStock     AssetClass = "STOCK"
	AssetClassETF       AssetClass = "ETF"
	AssetClassBond      AssetClass = "BOND"
	AssetClassFund      AssetClass = "FUND"
	AssetClassCommodity AssetClass = "COMMODITY"
	AssetClassCrypto    AssetClass = "CRYPTO"
	AssetClassCash      AssetClass = "CASH"
)

// Asset represents an investable instrument referenced by the ledger
type Asset struct {
	ID        int64      `json:"id"`
	Symbol    string     `json:"symbol"` // maps to ticker column
	Name      string     `json:"name"`
	Class     AssetClass `json:"class"`
	Sector    *string    `json:"sector"`    // nullable VARCHAR
	Country   *string    `json:"country"`   // nullable VARCHAR
	Currency  string     `json:"currency"`  // listing currency (ISO 4217)
	Inception *time.Time `json:"inception"` // nullable DATE
}

// SectorOrUnknown returns the asset's sector, or "Unknown" when missing.
// Unknown assets stay in allocation buckets so percentages still total 100.
func (a *Asset) SectorOrUnknown() string {
	if a.Sector == nil || *a.Sector == "" {
		return "Unknown"
	}
	return *a.Sector
}

// CountryOrUnknown returns the asset's country, or "Unknown" when missing.
func (a *Asset) CountryOrUnknown() string {
	if a.Country == nil || *a.Country == "" {
		return "Unknown"
	}
	return *a.Country
}
