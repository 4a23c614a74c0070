package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CorrelationRepo implements domain.CorrelationRepository backed by
// PostgreSQL.
type CorrelationRepo struct {
	pool *pgxpool.Pool
}

func NewCorrelationRepo(pool *pgxpool.Pool) *CorrelationRepo {
	return &CorrelationRepo{pool: pool}
}

// dimensionsKey renders a grouping spec as a stable string so result sets
// for different specs can coexist in one table.
func dimensionsKey(dims []domain.GroupDimension) string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = string(d)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ReplaceResults swaps the persisted result set for the given grouping spec.
func (r *CorrelationRepo) ReplaceResults(ctx context.Context, dims []domain.GroupDimension, results []domain.CorrelationResult) error {
	key := dimensionsKey(dims)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM correlation_results WHERE dimensions = $1`, key); err != nil {
		return fmt.Errorf("failed to clear correlation results: %w", err)
	}

	for _, res := range results {
		if _, err := tx.Exec(ctx, `
			INSERT INTO correlation_results (group_key, speaker, source, symbol, horizon, coefficient, p_value, n, sufficient, dimensions, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			res.GroupKey, res.Speaker, res.Source, res.Symbol, string(res.Horizon),
			res.Coefficient, res.PValue, res.N, res.Sufficient, key, res.ComputedAt,
		); err != nil {
			return fmt.Errorf("failed to insert correlation result %s: %w", res.GroupKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit correlation results: %w", err)
	}
	return nil
}

func (r *CorrelationRepo) ListResults(ctx context.Context, dims []domain.GroupDimension) ([]domain.CorrelationResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT group_key, speaker, source, symbol, horizon, coefficient, p_value, n, sufficient, computed_at
		FROM correlation_results
		WHERE dimensions = $1
		ORDER BY group_key`, dimensionsKey(dims))
	if err != nil {
		return nil, fmt.Errorf("failed to list correlation results: %w", err)
	}
	defer rows.Close()

	var results []domain.CorrelationResult
	for rows.Next() {
		var res domain.CorrelationResult
		if err := rows.Scan(
			&res.GroupKey, &res.Speaker, &res.Source, &res.Symbol, &res.Horizon,
			&res.Coefficient, &res.PValue, &res.N, &res.Sufficient, &res.ComputedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListPairs reads the joined sentiment and delta snapshot the correlation
// engine consumes. Documents without a sentiment row or without deltas do
// not appear.
func (r *CorrelationRepo) ListPairs(ctx context.Context) ([]domain.ObservationPair, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.speaker, d.source, m.symbol, m.horizon,
		       s.positive, s.neutral, s.negative, m.pct_change
		FROM documents d
		JOIN document_sentiments s ON s.document_id = d.id
		JOIN market_deltas m ON m.document_id = d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list observation pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.ObservationPair
	for rows.Next() {
		var p domain.ObservationPair
		if err := rows.Scan(
			&p.Speaker, &p.Source, &p.Symbol, &p.Horizon,
			&p.Sentiment.Positive, &p.Sentiment.Neutral, &p.Sentiment.Negative, &p.PctChange,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
