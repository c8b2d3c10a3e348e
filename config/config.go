package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	PGURL string
	MDKey string
	Port  string

	// StaleToleranceDays is how many trading days a price may be carried
	// forward before an asset's contribution is flagged stale.
	StaleToleranceDays int

	// RiskFreeRatePct is the annual risk-free rate, in percent, used for
	// Sharpe ratios.
	RiskFreeRatePct float64

	// ProviderTimeout bounds every market data lookup.
	ProviderTimeout time.Duration
}

// Load reads configuration from the environment, with a .env file as
// fallback for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	mdKey := os.Getenv("MD_KEY")
	if mdKey == "" {
		return nil, fmt.Errorf("MD_KEY environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	staleTolerance := 5
	if v := os.Getenv("STALE_TOLERANCE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("STALE_TOLERANCE_DAYS must be a non-negative integer")
		}
		staleTolerance = n
	}

	riskFree := 4.0
	if v := os.Getenv("RISK_FREE_RATE_PCT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("RISK_FREE_RATE_PCT must be a number")
		}
		riskFree = f
	}

	providerTimeout := 30 * time.Second
	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be a positive integer")
		}
		providerTimeout = time.Duration(n) * time.Second
	}

	return &Config{
		PGURL:              pgURL,
		MDKey:              mdKey,
		Port:               port,
		StaleToleranceDays: staleTolerance,
		RiskFreeRatePct:    riskFree,
		ProviderTimeout:    providerTimeout,
	}, nil
}
