package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const dailyFixture = `{
	"Meta Data": {
		"2. Symbol": "ACME",
		"3. Last Refreshed": "2025-06-16"
	},
	"Time Series (Daily)": {
		"2025-06-16": {"1. open": "101.0", "2. high": "103.0", "3. low": "100.0", "4. close": "102.50", "5. volume": "1000"},
		"2025-06-13": {"1. open": "99.0", "2. high": "101.0", "3. low": "98.0", "4. close": "100.25", "5. volume": "900"},
		"bad-date":   {"4. close": "1.0"},
		"2025-06-12": {"4. close": "not a number"}
	}
}`

const fxFixture = `{
	"Meta Data": {
		"2. From Symbol": "EUR",
		"3. To Symbol": "USD"
	},
	"Time Series FX (Daily)": {
		"2025-06-16": {"1. open": "1.08", "2. high": "1.09", "3. low": "1.07", "4. close": "1.0850"},
		"2025-06-13": {"1. open": "1.07", "2. high": "1.08", "3. low": "1.06", "4. close": "1.0790"}
	}
}`

func TestGetDailyBars(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(dailyFixture))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("test-key", srv.URL, 5*time.Second)
	bars, err := client.GetDailyBars(context.Background(), "ACME", "compact")
	if err != nil {
		t.Fatalf("GetDailyBars failed: %v", err)
	}

	// Unparseable dates and closes are skipped, not fatal.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	closes := map[string]float64{}
	for _, b := range bars {
		closes[b.Date.Format("2006-01-02")] = b.Close
	}
	assert.InDelta(t, 102.50, closes["2025-06-16"], 1e-9)
	assert.InDelta(t, 100.25, closes["2025-06-13"], 1e-9)

	assert.Contains(t, gotQuery, "function=TIME_SERIES_DAILY_ADJUSTED")
	assert.Contains(t, gotQuery, "symbol=ACME")
	assert.Contains(t, gotQuery, "outputsize=compact")
	assert.Contains(t, gotQuery, "apikey=test-key")
}

func TestGetFXDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "function=FX_DAILY")
		assert.Contains(t, r.URL.RawQuery, "from_symbol=EUR")
		assert.Contains(t, r.URL.RawQuery, "to_symbol=USD")
		w.Write([]byte(fxFixture))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("test-key", srv.URL, 5*time.Second)
	rates, err := client.GetFXDaily(context.Background(), "EUR", "USD", "compact")
	if err != nil {
		t.Fatalf("GetFXDaily failed: %v", err)
	}

	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
}

func TestGetDailyBars_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(dailyFixture))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("test-key", srv.URL, 20*time.Millisecond)
	_, err := client.GetDailyBars(context.Background(), "ACME", "compact")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got %v", err)
}

func TestGetDailyBars_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(dailyFixture))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClientWithBaseURL("test-key", srv.URL, 5*time.Second)
	_, err := client.GetDailyBars(ctx, "ACME", "compact")
	assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got %v", err)
}

func TestGetDailyBars_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("test-key", srv.URL, 5*time.Second)
	_, err := client.GetDailyBars(context.Background(), "ACME", "compact")
	if err == nil {
		t.Fatal("expected an error on HTTP 503")
	}
	assert.False(t, errors.Is(err, ErrTimeout))
}
