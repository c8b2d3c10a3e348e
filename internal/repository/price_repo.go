package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quantfolio/insights/internal/models"
)

// PriceRepository handles database operations for the daily price store.
// It serves batch range reads for valuation and caches provider fetches.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new PriceRepository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetDailyBars retrieves cached daily bars for several assets in one query,
// grouped by asset and ordered by date. One round trip per valuation, not
// one per asset per day.
func (r *PriceRepository) GetDailyBars(ctx context.Context, assetIDs []int64, startDate, endDate time.Time) (map[int64][]models.PriceBar, error) {
	if len(assetIDs) == 0 {
		return map[int64][]models.PriceBar{}, nil
	}
	query := `
		SELECT asset_id, date, close, currency
		FROM fact_price
		WHERE asset_id = ANY($1) AND date >= $2 AND date <= $3
		ORDER BY asset_id ASC, date ASC
	`
	rows, err := r.pool.Query(ctx, query, assetIDs, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	bars := make(map[int64][]models.PriceBar)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.AssetID, &b.Date, &b.Close, &b.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars[b.AssetID] = append(bars[b.AssetID], b)
	}
	return bars, rows.Err()
}

// StoreDailyBars upserts provider-fetched bars
func (r *PriceRepository) StoreDailyBars(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO fact_price (asset_id, date, close, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id, date) DO UPDATE
		SET close = EXCLUDED.close, currency = EXCLUDED.currency
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, b.AssetID, b.Date, b.Close, b.Currency)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to store price bar: %w", err)
		}
	}
	return nil
}

// GetPriceRange returns the cached coverage span for an asset, or nil when
// nothing has been fetched yet.
func (r *PriceRepository) GetPriceRange(ctx context.Context, assetID int64) (*models.PriceRange, error) {
	query := `
		SELECT asset_id, start_date, end_date, next_update
		FROM fact_price_range
		WHERE asset_id = $1
	`
	pr := &models.PriceRange{}
	err := r.pool.QueryRow(ctx, query, assetID).Scan(&pr.AssetID, &pr.StartDate, &pr.EndDate, &pr.NextUpdate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price range: %w", err)
	}
	return pr, nil
}

// UpsertPriceRange expands the coverage span for an asset. LEAST/GREATEST
// keep the widest known range when fetches overlap.
func (r *PriceRepository) UpsertPriceRange(ctx context.Context, assetID int64, startDate, endDate, nextUpdate time.Time) error {
	query := `
		INSERT INTO fact_price_range (asset_id, start_date, end_date, next_update)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id) DO UPDATE
		SET start_date = LEAST(fact_price_range.start_date, EXCLUDED.start_date),
		    end_date = GREATEST(fact_price_range.end_date, EXCLUDED.end_date),
		    next_update = EXCLUDED.next_update
	`
	_, err := r.pool.Exec(ctx, query, assetID, startDate, endDate, nextUpdate)
	if err != nil {
		return fmt.Errorf("failed to upsert price range: %w", err)
	}
	return nil
}

// GetBenchmarkBars retrieves cached daily closes for a benchmark symbol
func (r *PriceRepository) GetBenchmarkBars(ctx context.Context, symbol string, startDate, endDate time.Time) ([]models.BenchmarkBar, error) {
	query := `
		SELECT symbol, date, close
		FROM fact_benchmark_price
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := r.pool.Query(ctx, query, symbol, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark bars: %w", err)
	}
	defer rows.Close()

	var bars []models.BenchmarkBar
	for rows.Next() {
		var b models.BenchmarkBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Close); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// StoreBenchmarkBars upserts provider-fetched benchmark closes
func (r *PriceRepository) StoreBenchmarkBars(ctx context.Context, bars []models.BenchmarkBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO fact_benchmark_price (symbol, date, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, date) DO UPDATE
		SET close = EXCLUDED.close
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, b.Symbol, b.Date, b.Close)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to store benchmark bar: %w", err)
		}
	}
	return nil
}
