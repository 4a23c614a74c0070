package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, source, speaker, title, url, content, published_at, state, ingested_at`

// DocumentRepo implements domain.DocumentRepository backed by PostgreSQL.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID, &doc.Source, &doc.Speaker, &doc.Title, &doc.URL,
		&doc.Content, &doc.PublishedAt, &doc.State, &doc.IngestedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.PublishedAt = doc.PublishedAt.UTC()
	return &doc, nil
}

// Upsert inserts a document keyed on URL. Re-ingesting a known URL is a
// no-op unless the content changed, in which case the row is updated and the
// state reset so the pipeline rescores it. Exactly one row per URL, no
// matter how often the upsert is repeated.
func (r *DocumentRepo) Upsert(ctx context.Context, source, speaker, title, url, content string, publishedAt time.Time) (*domain.Document, bool, error) {
	existing, err := r.getByURL(ctx, url)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, false, fmt.Errorf("failed to look up document by url: %w", err)
	}

	if existing != nil {
		if existing.Content == content {
			return existing, false, nil
		}
		doc, err := scanDocument(r.pool.QueryRow(ctx, `
			UPDATE documents
			SET source = $2, speaker = $3, title = $4, content = $5, published_at = $6, state = 'ingested'
			WHERE url = $1
			RETURNING `+documentColumns,
			url, source, speaker, title, content, publishedAt.UTC()))
		if err != nil {
			return nil, false, fmt.Errorf("failed to update document: %w", err)
		}
		return doc, false, nil
	}

	doc, err := scanDocument(r.pool.QueryRow(ctx, `
		INSERT INTO documents (source, speaker, title, url, content, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING `+documentColumns,
		source, speaker, title, url, content, publishedAt.UTC()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, true, nil
}

func (r *DocumentRepo) getByURL(ctx context.Context, url string) (*domain.Document, error) {
	return scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE url = $1`, url))
}

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (r *DocumentRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var conditions []string
	var args []any

	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Speaker != "" {
		args = append(args, "%"+filter.Speaker+"%")
		conditions = append(conditions, fmt.Sprintf("speaker ILIKE $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("published_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("published_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY published_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepo) ListByState(ctx context.Context, state domain.DocumentState, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE state = $1
		ORDER BY published_at ASC
		LIMIT $2`, string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by state: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepo) SetState(ctx context.Context, id uuid.UUID, state domain.DocumentState) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET state = $2 WHERE id = $1`, id, string(state))
	if err != nil {
		return fmt.Errorf("failed to set document state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func collectDocuments(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID, &doc.Source, &doc.Speaker, &doc.Title, &doc.URL,
			&doc.Content, &doc.PublishedAt, &doc.State, &doc.IngestedAt,
		); err != nil {
			return nil, err
		}
		doc.PublishedAt = doc.PublishedAt.UTC()
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}
