package marketdata

import "time"

// TimeSeriesDailyResponse represents the provider's daily series payload
type TimeSeriesDailyResponse struct {
	TimeSeries map[string]DailyOHLCV `json:"Time Series (Daily)"`
}

// DailyOHLCV represents one day of price data as returned by the provider.
// All numerics arrive as strings.
type DailyOHLCV struct {
	Open             string `json:"1. open"`
	High             string `json:"2. high"`
	Low              string `json:"3. low"`
	Close            string `json:"4. close"`
	Volume           string `json:"5. volume"`
	DividendAmount   string `json:"7. dividend amount"`
	SplitCoefficient string `json:"8. split coefficient"`
}

// FXDailyResponse represents the provider's daily FX payload
type FXDailyResponse struct {
	TimeSeries map[string]FXDailyRate `json:"Time Series FX (Daily)"`
}

// FXDailyRate represents one day of FX data
type FXDailyRate struct {
	Open  string `json:"1. open"`
	High  string `json:"2. high"`
	Low   string `json:"3. low"`
	Close string `json:"4. close"`
}

// ParsedBar represents parsed daily price data ready for use
type ParsedBar struct {
	Date  time.Time
	Close float64
}

// ParsedFXRate represents a parsed daily conversion rate
type ParsedFXRate struct {
	Date time.Time
	Rate float64
}
