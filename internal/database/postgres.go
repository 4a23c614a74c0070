// Package database provides the PostgreSQL persistence layer: connection
// pooling, migrations, and the repository implementations.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = 25

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the schema. Statements are idempotent so startup is
// safe to repeat.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			source TEXT NOT NULL,
			speaker TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			url TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			state TEXT NOT NULL DEFAULT 'ingested',
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_speaker ON documents(speaker)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_published ON documents(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_state ON documents(state)`,
		`CREATE TABLE IF NOT EXISTS chunk_sentiments (
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			positive DOUBLE PRECISION NOT NULL,
			neutral DOUBLE PRECISION NOT NULL,
			negative DOUBLE PRECISION NOT NULL,
			label TEXT NOT NULL,
			token_count INT NOT NULL,
			PRIMARY KEY (document_id, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS document_sentiments (
			document_id UUID PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			positive DOUBLE PRECISION NOT NULL,
			neutral DOUBLE PRECISION NOT NULL,
			negative DOUBLE PRECISION NOT NULL,
			label TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			chunk_count INT NOT NULL,
			analyzed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS market_deltas (
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			horizon TEXT NOT NULL,
			base_price DOUBLE PRECISION,
			target_price DOUBLE PRECISION,
			pct_change DOUBLE PRECISION,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (document_id, symbol, horizon)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_deltas_symbol ON market_deltas(symbol)`,
		`CREATE TABLE IF NOT EXISTS correlation_results (
			group_key TEXT PRIMARY KEY,
			speaker TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			symbol TEXT NOT NULL DEFAULT '',
			horizon TEXT NOT NULL DEFAULT '',
			coefficient DOUBLE PRECISION,
			p_value DOUBLE PRECISION,
			n INT NOT NULL,
			sufficient BOOLEAN NOT NULL,
			dimensions TEXT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_correlation_dimensions ON correlation_results(dimensions)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
