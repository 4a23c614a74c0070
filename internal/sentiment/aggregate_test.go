package sentiment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

func TestAggregate_EmptyChunks(t *testing.T) {
	_, err := Aggregate(uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNoChunks)
}

func TestAggregate_IdenticalChunksPreserveTriple(t *testing.T) {
	docID := uuid.New()
	probs := domain.Probabilities{Positive: 0.7, Neutral: 0.2, Negative: 0.1}
	chunks := []domain.ChunkSentiment{
		{DocumentID: docID, ChunkIndex: 0, Probabilities: probs, TokenCount: 120},
		{DocumentID: docID, ChunkIndex: 1, Probabilities: probs, TokenCount: 80},
		{DocumentID: docID, ChunkIndex: 2, Probabilities: probs, TokenCount: 300},
	}

	agg, err := Aggregate(docID, chunks)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, agg.Positive, 1e-12)
	assert.InDelta(t, 0.2, agg.Neutral, 1e-12)
	assert.InDelta(t, 0.1, agg.Negative, 1e-12)
	assert.Equal(t, domain.LabelPositive, agg.Label)
	assert.InDelta(t, 0.7, agg.Confidence, 1e-12)
	assert.Equal(t, 3, agg.ChunkCount)
}

func TestAggregate_TokenWeighting(t *testing.T) {
	docID := uuid.New()
	chunks := []domain.ChunkSentiment{
		{ChunkIndex: 0, Probabilities: domain.Probabilities{Positive: 1}, TokenCount: 300},
		{ChunkIndex: 1, Probabilities: domain.Probabilities{Negative: 1}, TokenCount: 100},
	}

	agg, err := Aggregate(docID, chunks)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, agg.Positive, 1e-12)
	assert.InDelta(t, 0.25, agg.Negative, 1e-12)
	assert.Equal(t, domain.LabelPositive, agg.Label)
}

func TestAggregate_ZeroWeightsFallBackToMean(t *testing.T) {
	docID := uuid.New()
	chunks := []domain.ChunkSentiment{
		{ChunkIndex: 0, Probabilities: domain.Probabilities{Positive: 1}, TokenCount: 0},
		{ChunkIndex: 1, Probabilities: domain.Probabilities{Negative: 1}, TokenCount: 0},
	}

	agg, err := Aggregate(docID, chunks)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, agg.Positive, 1e-12)
	assert.InDelta(t, 0.5, agg.Negative, 1e-12)
}

func TestAggregate_Idempotent(t *testing.T) {
	docID := uuid.New()
	chunks := []domain.ChunkSentiment{
		{ChunkIndex: 0, Probabilities: domain.Probabilities{Positive: 0.6, Neutral: 0.3, Negative: 0.1}, TokenCount: 42},
		{ChunkIndex: 1, Probabilities: domain.Probabilities{Positive: 0.1, Neutral: 0.4, Negative: 0.5}, TokenCount: 17},
	}

	first, err := Aggregate(docID, chunks)
	require.NoError(t, err)
	second, err := Aggregate(docID, chunks)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLabel_TieBreak(t *testing.T) {
	p := domain.Probabilities{Positive: 0.4, Neutral: 0.4, Negative: 0.2}
	assert.Equal(t, domain.LabelPositive, p.Label())

	p = domain.Probabilities{Positive: 0.2, Neutral: 0.4, Negative: 0.4}
	assert.Equal(t, domain.LabelNeutral, p.Label())
}
