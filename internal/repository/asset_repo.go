package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quantfolio/insights/internal/models"
)

// AssetRepository handles database operations for assets
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// GetByIDs retrieves assets by id, keyed by id. Missing ids are simply
// absent from the map; callers decide whether that is fatal.
func (r *AssetRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Asset, error) {
	if len(ids) == 0 {
		return map[int64]*models.Asset{}, nil
	}
	query := `
		SELECT id, ticker, name, class, sector, country, currency, inception
		FROM dim_asset
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*models.Asset)
	for rows.Next() {
		a := &models.Asset{}
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Class, &a.Sector, &a.Country, &a.Currency, &a.Inception); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		result[a.ID] = a
	}
	return result, rows.Err()
}
