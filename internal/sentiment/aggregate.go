package sentiment

import (
	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/google/uuid"
)

// Aggregate combines per-chunk sentiment into one document-level record.
// Probabilities are averaged weighted by each chunk's token count, so chunks
// carrying more textual evidence contribute proportionally more. The result
// depends only on the chunk set: recomputation yields identical aggregates.
func Aggregate(docID uuid.UUID, chunks []domain.ChunkSentiment) (domain.DocumentSentiment, error) {
	if len(chunks) == 0 {
		return domain.DocumentSentiment{}, domain.ErrNoChunks
	}

	var totalWeight float64
	for _, c := range chunks {
		totalWeight += float64(c.TokenCount)
	}

	var agg domain.Probabilities
	for _, c := range chunks {
		weight := float64(c.TokenCount)
		if totalWeight == 0 {
			// Degenerate token counts: fall back to a plain mean.
			weight = 1
		}
		agg.Positive += c.Positive * weight
		agg.Neutral += c.Neutral * weight
		agg.Negative += c.Negative * weight
	}
	divisor := totalWeight
	if divisor == 0 {
		divisor = float64(len(chunks))
	}
	agg.Positive /= divisor
	agg.Neutral /= divisor
	agg.Negative /= divisor

	return domain.DocumentSentiment{
		DocumentID:    docID,
		Probabilities: agg,
		Label:         agg.Label(),
		Confidence:    agg.Max(),
		ChunkCount:    len(chunks),
	}, nil
}
