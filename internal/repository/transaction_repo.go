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

var ErrPortfolioNotFound = errors.New("portfolio not found")

// TransactionRepository reads the settled ledger. The engine never writes
// here; transactions are immutable input.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// GetPortfolio returns the portfolio's base currency, verifying existence
func (r *TransactionRepository) GetPortfolio(ctx context.Context, portfolioID int64) (string, error) {
	query := `
		SELECT base_currency
		FROM dim_portfolio
		WHERE id = $1
	`
	var baseCurrency string
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&baseCurrency)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPortfolioNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get portfolio: %w", err)
	}
	return baseCurrency, nil
}

// ListByPortfolio retrieves all settled transactions for a portfolio up to
// and including endDate, ordered by date then id. The full history is needed
// even for short periods: the position on the period's first day depends on
// every prior transaction.
func (r *TransactionRepository) ListByPortfolio(ctx context.Context, portfolioID int64, endDate time.Time) ([]models.Transaction, error) {
	query := `
		SELECT id, portfolio_id, asset_id, date, type, quantity, price, fees, currency, updated
		FROM ledger_transaction
		WHERE portfolio_id = $1 AND date <= $2
		ORDER BY date ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, portfolioID, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.PortfolioID, &t.AssetID, &t.Date, &t.Type,
			&t.Quantity, &t.Price, &t.Fees, &t.Currency, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// FirstActivity returns the date of the portfolio's earliest transaction.
// Used to resolve the "all" period and to clamp requested start dates.
func (r *TransactionRepository) FirstActivity(ctx context.Context, portfolioID int64) (*time.Time, error) {
	query := `
		SELECT MIN(date)
		FROM ledger_transaction
		WHERE portfolio_id = $1
	`
	var first *time.Time
	if err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&first); err != nil {
		return nil, fmt.Errorf("failed to get first activity: %w", err)
	}
	return first, nil
}

// LatestUpdate returns the max updated timestamp across the portfolio's
// transactions. It is the ledger version: any new or corrected entry moves
// it forward, which invalidates cached insights.
func (r *TransactionRepository) LatestUpdate(ctx context.Context, portfolioID int64) (time.Time, error) {
	query := `
		SELECT COALESCE(MAX(updated), 'epoch'::timestamptz)
		FROM ledger_transaction
		WHERE portfolio_id = $1
	`
	var latest time.Time
	if err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get ledger version: %w", err)
	}
	return latest, nil
}

// ListSplits retrieves split events for the given assets, ordered by date.
// Ratio stays the raw "N:D" string; parsing happens in the adjuster so a
// malformed row degrades to a warning instead of failing the query.
func (r *TransactionRepository) ListSplits(ctx context.Context, assetIDs []int64) ([]models.SplitEvent, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, asset_id, date, ratio
		FROM corporate_action
		WHERE asset_id = ANY($1) AND action_type = 'SPLIT'
		ORDER BY date ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer rows.Close()

	var splits []models.SplitEvent
	for rows.Next() {
		var s models.SplitEvent
		if err := rows.Scan(&s.ID, &s.AssetID, &s.Date, &s.Ratio); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}
