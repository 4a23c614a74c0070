package database

import (
	"context"
	"fmt"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MarketRepo implements domain.MarketRepository backed by PostgreSQL.
type MarketRepo struct {
	pool *pgxpool.Pool
}

func NewMarketRepo(pool *pgxpool.Pool) *MarketRepo {
	return &MarketRepo{pool: pool}
}

// ReplaceDeltas swaps all of a document's deltas in one transaction so a
// concurrent correlation snapshot never observes a partial set.
func (r *MarketRepo) ReplaceDeltas(ctx context.Context, docID uuid.UUID, deltas []domain.MarketDelta) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM market_deltas WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to clear market deltas: %w", err)
	}

	for _, d := range deltas {
		if _, err := tx.Exec(ctx, `
			INSERT INTO market_deltas (document_id, symbol, horizon, base_price, target_price, pct_change, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			docID, d.Symbol, string(d.Horizon), d.BasePrice, d.TargetPrice, d.PctChange,
		); err != nil {
			return fmt.Errorf("failed to insert market delta %s/%s: %w", d.Symbol, d.Horizon, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit market deltas: %w", err)
	}
	return nil
}

func (r *MarketRepo) ListDeltas(ctx context.Context, docID uuid.UUID) ([]domain.MarketDelta, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT document_id, symbol, horizon, base_price, target_price, pct_change
		FROM market_deltas
		WHERE document_id = $1
		ORDER BY symbol, horizon`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list market deltas: %w", err)
	}
	defer rows.Close()

	var deltas []domain.MarketDelta
	for rows.Next() {
		var d domain.MarketDelta
		if err := rows.Scan(&d.DocumentID, &d.Symbol, &d.Horizon, &d.BasePrice, &d.TargetPrice, &d.PctChange); err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}
