package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentState tracks a document's progression through the pipeline.
// Every transition is idempotent and independently re-runnable, so a
// backfill can resume from any stage.
type DocumentState string

const (
	StateIngested   DocumentState = "ingested"
	StateScored     DocumentState = "scored"
	StateAligned    DocumentState = "aligned"
	StateCorrelated DocumentState = "correlated"
	StateFailed     DocumentState = "failed"
)

// Document is a speech, press release, or statement from a central bank.
// The URL is the natural identity key: re-ingesting the same URL must never
// create a second row. Immutable once scored, unless its content changes.
type Document struct {
	ID          uuid.UUID
	Source      string // 'ecb', 'fed', ...
	Speaker     string
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time // normalized to UTC
	State       DocumentState
	IngestedAt  time.Time
}

// DocumentFilter narrows List queries. Zero values mean "no filter".
type DocumentFilter struct {
	Source  string
	Speaker string
	From    time.Time
	To      time.Time
	Limit   int
}

type DocumentRepository interface {
	// Upsert inserts keyed on URL. A known URL with unchanged content is a
	// no-op; changed content updates the row and resets state to ingested
	// so the pipeline rescores it. Returns the stored document and whether
	// a new row was created.
	Upsert(ctx context.Context, source, speaker, title, url, content string, publishedAt time.Time) (*Document, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*Document, error)
	ListByState(ctx context.Context, state DocumentState, limit int) ([]*Document, error)
	SetState(ctx context.Context, id uuid.UUID, state DocumentState) error
}

// Chunk is a token-budget-respecting contiguous slice of a document's text.
// Chunks are derived deterministically from the content and are recomputable;
// they are never persisted apart from their sentiment scores.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}
