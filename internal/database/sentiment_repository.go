package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SentimentRepo implements domain.SentimentRepository backed by PostgreSQL.
type SentimentRepo struct {
	pool *pgxpool.Pool
}

func NewSentimentRepo(pool *pgxpool.Pool) *SentimentRepo {
	return &SentimentRepo{pool: pool}
}

// ReplaceScores writes chunk scores and the aggregated record in a single
// transaction, replacing any prior run. The document sentiment is therefore
// never visible without its full chunk set.
func (r *SentimentRepo) ReplaceScores(ctx context.Context, docID uuid.UUID, chunks []domain.ChunkSentiment, agg domain.DocumentSentiment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM chunk_sentiments WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to clear chunk sentiments: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunk_sentiments (document_id, chunk_index, positive, neutral, negative, label, token_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			docID, c.ChunkIndex, c.Positive, c.Neutral, c.Negative, string(c.Label), c.TokenCount,
		); err != nil {
			return fmt.Errorf("failed to insert chunk sentiment %d: %w", c.ChunkIndex, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO document_sentiments (document_id, positive, neutral, negative, label, confidence, chunk_count, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			positive = EXCLUDED.positive,
			neutral = EXCLUDED.neutral,
			negative = EXCLUDED.negative,
			label = EXCLUDED.label,
			confidence = EXCLUDED.confidence,
			chunk_count = EXCLUDED.chunk_count,
			analyzed_at = NOW()`,
		docID, agg.Positive, agg.Neutral, agg.Negative, string(agg.Label), agg.Confidence, agg.ChunkCount,
	); err != nil {
		return fmt.Errorf("failed to upsert document sentiment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sentiment scores: %w", err)
	}
	return nil
}

func (r *SentimentRepo) GetDocumentSentiment(ctx context.Context, docID uuid.UUID) (*domain.DocumentSentiment, error) {
	var s domain.DocumentSentiment
	err := r.pool.QueryRow(ctx, `
		SELECT document_id, positive, neutral, negative, label, confidence, chunk_count
		FROM document_sentiments
		WHERE document_id = $1`, docID,
	).Scan(&s.DocumentID, &s.Positive, &s.Neutral, &s.Negative, &s.Label, &s.Confidence, &s.ChunkCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SentimentRepo) ListChunkSentiments(ctx context.Context, docID uuid.UUID) ([]domain.ChunkSentiment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT document_id, chunk_index, positive, neutral, negative, label, token_count
		FROM chunk_sentiments
		WHERE document_id = $1
		ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk sentiments: %w", err)
	}
	defer rows.Close()

	var chunks []domain.ChunkSentiment
	for rows.Next() {
		var c domain.ChunkSentiment
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Positive, &c.Neutral, &c.Negative, &c.Label, &c.TokenCount); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
