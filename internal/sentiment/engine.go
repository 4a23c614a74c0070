package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/metrics"
	"github.com/MessaoudiOussama/market-analytics/internal/platform/retry"
	"github.com/MessaoudiOussama/market-analytics/internal/segment"
	"golang.org/x/sync/errgroup"
)

const (
	scoreAttempts       = 3
	scoreInitialBackoff = 500 * time.Millisecond
)

// Engine runs the chunk → score → aggregate path for one document. Chunk
// scorer calls are issued concurrently up to the configured limit; results
// are collected in chunk-index order before aggregation.
type Engine struct {
	segmenter   *segment.Segmenter
	scorer      domain.Scorer
	concurrency int
}

func NewEngine(segmenter *segment.Segmenter, scorer domain.Scorer, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{segmenter: segmenter, scorer: scorer, concurrency: concurrency}
}

// AnalyzeDocument segments the document, scores every chunk, and aggregates
// the results. Transient scorer failures are retried with backoff; a
// permanent failure on any chunk fails the whole document so no partial
// DocumentSentiment is ever produced.
func (e *Engine) AnalyzeDocument(ctx context.Context, doc *domain.Document) ([]domain.ChunkSentiment, domain.DocumentSentiment, error) {
	chunks, err := e.segmenter.Segment(ctx, doc.Content)
	if err != nil {
		return nil, domain.DocumentSentiment{}, fmt.Errorf("segment document %s: %w", doc.ID, err)
	}

	scores := make([]domain.ChunkSentiment, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, chunk := range chunks {
		chunk := chunk // per-iteration copy; required under go <1.22 loop semantics
		g.Go(func() error {
			probs, err := e.scoreChunk(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("score chunk %d: %w", chunk.Index, err)
			}
			scores[chunk.Index] = domain.ChunkSentiment{
				DocumentID:    doc.ID,
				ChunkIndex:    chunk.Index,
				Probabilities: probs,
				Label:         probs.Label(),
				TokenCount:    chunk.TokenCount,
			}
			metrics.ChunksScoredTotal.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.DocumentSentiment{}, err
	}

	agg, err := Aggregate(doc.ID, scores)
	if err != nil {
		return nil, domain.DocumentSentiment{}, err
	}

	logging.WithDocument(doc.ID.String()).Debug("Document analyzed",
		"chunks", len(scores),
		"label", string(agg.Label))
	return scores, agg, nil
}

func (e *Engine) scoreChunk(ctx context.Context, text string) (domain.Probabilities, error) {
	policy := retry.Policy{
		MaxAttempts:    scoreAttempts,
		InitialBackoff: scoreInitialBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			metrics.ScorerRetriesTotal.Inc()
			slog.Warn("Retrying chunk score", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	classify := func(err error) retry.Action {
		if errors.Is(err, domain.ErrScorerUnavailable) {
			return retry.Retry
		}
		return retry.Stop
	}
	return retry.Do(ctx, policy, classify, func() (domain.Probabilities, error) {
		return e.scorer.Score(ctx, text)
	})
}
