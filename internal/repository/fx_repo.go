package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quantfolio/insights/internal/models"
)

// FXRepository handles database operations for daily FX rates
type FXRepository struct {
	pool *pgxpool.Pool
}

// NewFXRepository creates a new FXRepository
func NewFXRepository(pool *pgxpool.Pool) *FXRepository {
	return &FXRepository{pool: pool}
}

// GetRates retrieves cached daily rates for several currency pairs in one
// query, ordered by date within each pair. Pairs are "BASE/QUOTE" strings.
func (r *FXRepository) GetRates(ctx context.Context, pairs []string, startDate, endDate time.Time) (map[string][]models.FXRate, error) {
	if len(pairs) == 0 {
		return map[string][]models.FXRate{}, nil
	}
	query := `
		SELECT base, quote, date, rate
		FROM fact_fx_rate
		WHERE base || '/' || quote = ANY($1) AND date >= $2 AND date <= $3
		ORDER BY base ASC, quote ASC, date ASC
	`
	rows, err := r.pool.Query(ctx, query, pairs, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query fx rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string][]models.FXRate)
	for rows.Next() {
		var fx models.FXRate
		if err := rows.Scan(&fx.Base, &fx.Quote, &fx.Date, &fx.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan fx rate: %w", err)
		}
		pair := fx.Base + "/" + fx.Quote
		rates[pair] = append(rates[pair], fx)
	}
	return rates, rows.Err()
}

// StoreRates upserts provider-fetched daily rates
func (r *FXRepository) StoreRates(ctx context.Context, rates []models.FXRate) error {
	if len(rates) == 0 {
		return nil
	}

	query := `
		INSERT INTO fact_fx_rate (base, quote, date, rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (base, quote, date) DO UPDATE
		SET rate = EXCLUDED.rate
	`

	batch := &pgx.Batch{}
	for _, fx := range rates {
		batch.Queue(query, fx.Base, fx.Quote, fx.Date, fx.Rate)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to store fx rate: %w", err)
		}
	}
	return nil
}
