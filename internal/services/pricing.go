package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/quantfolio/insights/internal/marketdata"
	"github.com/quantfolio/insights/internal/models"
	"github.com/quantfolio/insights/internal/repository"
	"github.com/quantfolio/insights/internal/util"
)

// compactFetchWindowDays is the provider's "compact" horizon: when cached
// coverage ends within this many days of now, a compact fetch fills the gap.
const compactFetchWindowDays = 100.0

// PricingService acquires daily bars and FX rates for the engine: Postgres
// store first, provider on coverage gaps. All reads are batched per query.
type PricingService struct {
	priceRepo *repository.PriceRepository
	fxRepo    *repository.FXRepository
	mdClient  *marketdata.Client
}

// NewPricingService creates a new PricingService
func NewPricingService(
	priceRepo *repository.PriceRepository,
	fxRepo *repository.FXRepository,
	mdClient *marketdata.Client,
) *PricingService {
	return &PricingService{
		priceRepo: priceRepo,
		fxRepo:    fxRepo,
		mdClient:  mdClient,
	}
}

// GetAssetBars returns daily bars for every asset over [startDate, endDate],
// grouped by asset, fetching provider data only for uncovered spans. The
// read starts 30 calendar days before startDate so carry-forward pricing has
// a seed on the period's first day.
func (s *PricingService) GetAssetBars(ctx context.Context, assets map[int64]*models.Asset, startDate, endDate time.Time) (map[int64][]models.PriceBar, error) {
	assetIDs := make([]int64, 0, len(assets))
	for id, a := range assets {
		assetIDs = append(assetIDs, id)

		effectiveStart := startDate
		if a.Inception != nil && startDate.Before(*a.Inception) {
			effectiveStart = *a.Inception
		}
		if err := s.ensureCoverage(ctx, a, effectiveStart, endDate); err != nil {
			return nil, err
		}
	}

	bars, err := s.priceRepo.GetDailyBars(ctx, assetIDs, startDate.AddDate(0, 0, -30), endDate)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// ensureCoverage fetches and stores bars from the provider when the cached
// span does not cover the requested range or is due for refresh.
func (s *PricingService) ensureCoverage(ctx context.Context, asset *models.Asset, startDate, endDate time.Time) error {
	priceRange, err := s.priceRepo.GetPriceRange(ctx, asset.ID)
	if err != nil {
		return err
	}

	currentDT := time.Now()
	needsFetch, fetchStyle := DetermineFetch(priceRange, currentDT, startDate, endDate)
	if !needsFetch {
		return nil
	}

	parsed, err := s.mdClient.GetDailyBars(ctx, asset.Symbol, fetchStyle)
	if err != nil {
		if errors.Is(err, marketdata.ErrTimeout) {
			return fmt.Errorf("fetching bars for %s: %w", asset.Symbol, ErrLookupTimeout)
		}
		return fmt.Errorf("failed to fetch bars for %s: %w", asset.Symbol, err)
	}
	if len(parsed) == 0 {
		return nil
	}

	bars := make([]models.PriceBar, 0, len(parsed))
	var minDate, maxDate time.Time
	for _, p := range parsed {
		bars = append(bars, models.PriceBar{
			AssetID:  asset.ID,
			Date:     p.Date,
			Close:    p.Close,
			Currency: asset.Currency,
		})
		if minDate.IsZero() || p.Date.Before(minDate) {
			minDate = p.Date
		}
		if maxDate.IsZero() || p.Date.After(maxDate) {
			maxDate = p.Date
		}
	}

	if err := s.priceRepo.StoreDailyBars(ctx, bars); err != nil {
		log.Errorf("failed to store bars for %s: %v", asset.Symbol, err)
		return nil
	}

	nextUpdate := util.NextMarketDate(currentDT)
	if err := s.priceRepo.UpsertPriceRange(ctx, asset.ID, minDate, maxDate, nextUpdate); err != nil {
		log.Errorf("failed to update price range for %s: %v", asset.Symbol, err)
	}
	return nil
}

// DetermineFetch decides whether the provider must be consulted and with
// which output size ("full" for all history, "compact" for the last 100
// days).
func DetermineFetch(priceRange *models.PriceRange, currentDT time.Time, effectiveStart time.Time, endDate time.Time) (bool, string) {
	if priceRange == nil {
		// No cached data at all - need full fetch
		return true, "full"
	}

	startCovered := !effectiveStart.Before(priceRange.StartDate)

	if !startCovered {
		// Historical data we've never fetched — must fetch regardless of NextUpdate
		if currentDT.Sub(priceRange.EndDate).Hours()/24.0 < compactFetchWindowDays {
			return true, "compact"
		}
		return true, "full"
	}

	// Start is covered. Use NextUpdate for refresh timing.
	// Handles both "fully covered" and "end gap" (data not yet available) correctly.
	if priceRange.NextUpdate.After(currentDT) {
		return false, ""
	}

	// NextUpdate has passed — time to refresh.
	if currentDT.Sub(priceRange.EndDate).Hours()/24.0 < compactFetchWindowDays {
		return true, "compact"
	}
	return true, "full"
}

// GetBenchmarkBars returns the benchmark's daily closes over the range,
// fetching from the provider when the store has nothing for the symbol.
func (s *PricingService) GetBenchmarkBars(ctx context.Context, symbol string, startDate, endDate time.Time) ([]models.BenchmarkBar, error) {
	bars, err := s.priceRepo.GetBenchmarkBars(ctx, symbol, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		return bars, nil
	}

	parsed, err := s.mdClient.GetDailyBars(ctx, symbol, "full")
	if err != nil {
		if errors.Is(err, marketdata.ErrTimeout) {
			return nil, fmt.Errorf("fetching benchmark %s: %w", symbol, ErrLookupTimeout)
		}
		return nil, fmt.Errorf("failed to fetch benchmark %s: %w", symbol, err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBenchmarkNotFound, symbol)
	}

	all := make([]models.BenchmarkBar, 0, len(parsed))
	for _, p := range parsed {
		all = append(all, models.BenchmarkBar{Symbol: symbol, Date: p.Date, Close: p.Close})
	}
	if err := s.priceRepo.StoreBenchmarkBars(ctx, all); err != nil {
		log.Errorf("failed to store benchmark bars for %s: %v", symbol, err)
	}

	var inRange []models.BenchmarkBar
	for _, b := range all {
		if !b.Date.Before(startDate) && !b.Date.After(endDate) {
			inRange = append(inRange, b)
		}
	}
	sortBenchmarkBars(inRange)
	return inRange, nil
}

// GetFXRates returns daily rates for the given "BASE/QUOTE" pairs over the
// range, grouped by pair and ordered by date. Pairs with no cached rows are
// fetched from the provider once, full history.
func (s *PricingService) GetFXRates(ctx context.Context, pairs []string, startDate, endDate time.Time) (map[string][]models.FXRate, error) {
	rates, err := s.fxRepo.GetRates(ctx, pairs, startDate.AddDate(0, 0, -30), endDate)
	if err != nil {
		return nil, err
	}

	for _, pair := range pairs {
		if len(rates[pair]) > 0 {
			continue
		}
		base, quote, ok := splitPair(pair)
		if !ok {
			continue
		}

		parsed, err := s.mdClient.GetFXDaily(ctx, base, quote, "full")
		if err != nil {
			if errors.Is(err, marketdata.ErrTimeout) {
				return nil, fmt.Errorf("fetching fx %s: %w", pair, ErrLookupTimeout)
			}
			return nil, fmt.Errorf("failed to fetch fx %s: %w", pair, err)
		}

		var all []models.FXRate
		for _, p := range parsed {
			all = append(all, models.FXRate{Base: base, Quote: quote, Date: p.Date, Rate: p.Rate})
		}
		if err := s.fxRepo.StoreRates(ctx, all); err != nil {
			log.Errorf("failed to store fx rates for %s: %v", pair, err)
		}

		var inRange []models.FXRate
		for _, fx := range all {
			if !fx.Date.Before(startDate.AddDate(0, 0, -30)) && !fx.Date.After(endDate) {
				inRange = append(inRange, fx)
			}
		}
		sortFXRates(inRange)
		rates[pair] = inRange
	}

	return rates, nil
}

func splitPair(pair string) (string, string, bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '/' {
			return pair[:i], pair[i+1:], true
		}
	}
	return "", "", false
}

func sortBenchmarkBars(bars []models.BenchmarkBar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

func sortFXRates(rates []models.FXRate) {
	sort.Slice(rates, func(i, j int) bool { return rates[i].Date.Before(rates[j].Date) })
}
