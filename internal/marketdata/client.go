package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// The engine's external price and FX source. The provider exposes daily
// series keyed by symbol or currency pair; everything here is read-only.
const defaultBaseURL = "https://www.alphavantage.co/query"

// ErrTimeout indicates the provider did not answer within the configured
// deadline. Callers degrade to "insufficient data" rather than hanging a
// whole query on one lookup.
var ErrTimeout = errors.New("market data lookup timed out")

// Client is an HTTP client for the market data provider
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client with a bounded request timeout
func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithBaseURL creates a provider client with a custom base URL (for testing)
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration) *Client {
	c := NewClient(apiKey, timeout)
	c.baseURL = baseURL
	return c
}

// GetDailyBars fetches daily closes for a symbol. outputSize is "compact"
// (last 100 days) or "full".
func (c *Client) GetDailyBars(ctx context.Context, symbol string, outputSize string) ([]ParsedBar, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", symbol)
	params.Set("outputsize", outputSize)
	params.Set("apikey", c.apiKey)

	resp, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var tsResp TimeSeriesDailyResponse
	if err := json.Unmarshal(body, &tsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var bars []ParsedBar
	for dateStr, ohlcv := range tsResp.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		closePrice, err := strconv.ParseFloat(ohlcv.Close, 64)
		if err != nil {
			continue
		}

		bars = append(bars, ParsedBar{
			Date:  date,
			Close: closePrice,
		})
	}

	return bars, nil
}

// GetFXDaily fetches daily conversion rates for a currency pair
func (c *Client) GetFXDaily(ctx context.Context, base, quote string, outputSize string) ([]ParsedFXRate, error) {
	params := url.Values{}
	params.Set("function", "FX_DAILY")
	params.Set("from_symbol", base)
	params.Set("to_symbol", quote)
	params.Set("outputsize", outputSize)
	params.Set("apikey", c.apiKey)

	resp, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var fxResp FXDailyResponse
	if err := json.Unmarshal(body, &fxResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var rates []ParsedFXRate
	for dateStr, day := range fxResp.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		rate, err := strconv.ParseFloat(day.Close, 64)
		if err != nil {
			continue
		}

		rates = append(rates, ParsedFXRate{
			Date: date,
			Rate: rate,
		})
	}

	return rates, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) (*http.Response, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
