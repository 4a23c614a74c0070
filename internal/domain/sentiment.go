package domain

import (
	"context"

	"github.com/google/uuid"
)

// SentimentLabel is the argmax of a probability triple.
type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNeutral  SentimentLabel = "neutral"
	LabelNegative SentimentLabel = "negative"
)

// Probabilities is a sentiment triple. The three values are non-negative
// and sum to 1 within floating tolerance.
type Probabilities struct {
	Positive float64
	Neutral  float64
	Negative float64
}

// Label returns the argmax label. Ties resolve positive > neutral > negative
// so repeated aggregation of the same input is deterministic.
func (p Probabilities) Label() SentimentLabel {
	switch {
	case p.Positive >= p.Neutral && p.Positive >= p.Negative:
		return LabelPositive
	case p.Neutral >= p.Negative:
		return LabelNeutral
	default:
		return LabelNegative
	}
}

// Max returns the winning probability.
func (p Probabilities) Max() float64 {
	m := p.Positive
	if p.Neutral > m {
		m = p.Neutral
	}
	if p.Negative > m {
		m = p.Negative
	}
	return m
}

// Net is the compound score: positive minus negative.
func (p Probabilities) Net() float64 {
	return p.Positive - p.Negative
}

// ChunkSentiment is the scorer's output for one chunk, paired with the
// chunk's token count so aggregation can weight by textual evidence.
type ChunkSentiment struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Probabilities
	Label      SentimentLabel
	TokenCount int
}

// DocumentSentiment is the aggregated, document-level record. One row per
// document; recomputation overwrites in place.
type DocumentSentiment struct {
	DocumentID uuid.UUID
	Probabilities
	Label      SentimentLabel
	Confidence float64
	ChunkCount int
}

// Tokenizer counts scorer-defined tokens. The segmenter depends on it to
// enforce the chunk budget.
type Tokenizer interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// Scorer converts one chunk of text into a sentiment probability triple.
// Implementations are stateless and order-independent; the expensive model
// behind them is loaded once and reused across many calls.
type Scorer interface {
	Score(ctx context.Context, text string) (Probabilities, error)
}

type SentimentRepository interface {
	// ReplaceScores writes the chunk scores and the aggregated document
	// sentiment in one transaction, so a DocumentSentiment exists if and
	// only if all of the document's chunks have been scored.
	ReplaceScores(ctx context.Context, docID uuid.UUID, chunks []ChunkSentiment, agg DocumentSentiment) error
	GetDocumentSentiment(ctx context.Context, docID uuid.UUID) (*DocumentSentiment, error)
	ListChunkSentiments(ctx context.Context, docID uuid.UUID) ([]ChunkSentiment, error)
}
