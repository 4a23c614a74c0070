// Package pipeline is the application layer - the only component that
// references multiple domain components. It exposes the per-stage
// entrypoints the orchestrator (HTTP API, backfill command, cron) drives.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/correlate"
	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/market"
	"github.com/MessaoudiOussama/market-analytics/internal/metrics"
	"github.com/MessaoudiOussama/market-analytics/internal/sentiment"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// stateRank orders pipeline states so a rerun never moves a document
// backwards.
var stateRank = map[domain.DocumentState]int{
	domain.StateIngested:   0,
	domain.StateScored:     1,
	domain.StateAligned:    2,
	domain.StateCorrelated: 3,
}

// Service wires the pipeline stages over the persistence ports. Every
// entrypoint is idempotent and safely retriable.
type Service struct {
	docs          domain.DocumentRepository
	sentiments    domain.SentimentRepository
	markets       domain.MarketRepository
	correlations  domain.CorrelationRepository
	engine        *sentiment.Engine
	aligner       *market.Aligner
	minSampleSize int
	formula       correlate.Formula
	concurrency   int
	scoreGroup    singleflight.Group
	clock         clockwork.Clock
}

func NewService(
	docs domain.DocumentRepository,
	sentiments domain.SentimentRepository,
	markets domain.MarketRepository,
	correlations domain.CorrelationRepository,
	engine *sentiment.Engine,
	aligner *market.Aligner,
	minSampleSize int,
	formula correlate.Formula,
	concurrency int,
	clock clockwork.Clock,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		docs:          docs,
		sentiments:    sentiments,
		markets:       markets,
		correlations:  correlations,
		engine:        engine,
		aligner:       aligner,
		minSampleSize: minSampleSize,
		formula:       formula,
		concurrency:   concurrency,
		clock:         clock,
	}
}

// Ingest upserts a document keyed on URL. A duplicate URL resolves silently
// to the existing row and never triggers duplicate downstream work.
func (s *Service) Ingest(ctx context.Context, source, speaker, title, url, content string, publishedAt time.Time) (*domain.Document, bool, error) {
	doc, created, err := s.docs.Upsert(ctx, source, speaker, title, url, content, publishedAt)
	if err != nil {
		return nil, false, fmt.Errorf("upsert document: %w", err)
	}
	if created {
		logging.WithDocument(doc.ID.String()).Info("Document ingested", "source", source, "speaker", speaker)
	} else {
		logging.WithDocument(doc.ID.String()).Debug("Document already known", "url", url)
	}
	return doc, created, nil
}

// ChunkAndScore runs the segment → score → aggregate stage for one
// document. Singleflight guarantees at most one in-flight scoring run per
// document, so racing retries never duplicate model inference.
func (s *Service) ChunkAndScore(ctx context.Context, docID uuid.UUID) error {
	_, err, _ := s.scoreGroup.Do(docID.String(), func() (any, error) {
		start := s.clock.Now()
		defer func() {
			metrics.StageDurationSeconds.WithLabelValues("score").Observe(s.clock.Since(start).Seconds())
		}()

		doc, err := s.docs.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}

		chunks, agg, err := s.engine.AnalyzeDocument(ctx, doc)
		if err != nil {
			metrics.DocumentsProcessedTotal.WithLabelValues("score", "error").Inc()
			return nil, err
		}

		if err := s.sentiments.ReplaceScores(ctx, docID, chunks, agg); err != nil {
			metrics.DocumentsProcessedTotal.WithLabelValues("score", "error").Inc()
			return nil, fmt.Errorf("persist scores for %s: %w", docID, err)
		}

		if err := s.advanceState(ctx, doc, domain.StateScored); err != nil {
			return nil, err
		}
		metrics.DocumentsProcessedTotal.WithLabelValues("score", "ok").Inc()
		logging.WithDocument(docID.String()).Info("Document scored",
			"chunks", agg.ChunkCount,
			"label", string(agg.Label),
			"confidence", agg.Confidence)
		return nil, nil
	})
	return err
}

// AlignMarket computes one market delta per configured (symbol, horizon)
// pair for the document. A missing observation yields a null delta; only
// persistence failures surface as errors.
func (s *Service) AlignMarket(ctx context.Context, docID uuid.UUID) error {
	start := s.clock.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("align").Observe(s.clock.Since(start).Seconds())
	}()

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	deltas := s.aligner.Align(ctx, doc)
	if err := s.markets.ReplaceDeltas(ctx, docID, deltas); err != nil {
		metrics.DocumentsProcessedTotal.WithLabelValues("align", "error").Inc()
		return fmt.Errorf("persist deltas for %s: %w", docID, err)
	}

	if err := s.advanceState(ctx, doc, domain.StateAligned); err != nil {
		return err
	}
	metrics.DocumentsProcessedTotal.WithLabelValues("align", "ok").Inc()
	logging.WithDocument(docID.String()).Info("Document aligned", "deltas", len(deltas))
	return nil
}

// Correlate recomputes grouped statistics over a snapshot of all persisted
// sentiment and delta records, and replaces the stored result set for the
// grouping spec. Safe to re-run concurrently with ingestion: a partial
// dataset just means the next run recomputes.
func (s *Service) Correlate(ctx context.Context, dims []domain.GroupDimension) ([]domain.CorrelationResult, error) {
	start := s.clock.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("correlate").Observe(s.clock.Since(start).Seconds())
	}()

	pairs, err := s.correlations.ListPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observation pairs: %w", err)
	}

	spec := correlate.Spec{Dimensions: dims, MinSampleSize: s.minSampleSize, Formula: s.formula}
	results := correlate.Compute(pairs, spec, s.clock.Now())

	if err := s.correlations.ReplaceResults(ctx, dims, results); err != nil {
		return nil, fmt.Errorf("persist correlation results: %w", err)
	}

	metrics.CorrelationRunsTotal.Inc()
	for _, res := range results {
		metrics.CorrelationGroupsTotal.WithLabelValues(fmt.Sprintf("%t", res.Sufficient)).Inc()
	}
	slog.Info("Correlations recomputed", "groups", len(results), "pairs", len(pairs))
	return results, nil
}

// GetDocument retrieves a document by ID.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// ListDocuments queries documents with optional filters.
func (s *Service) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	return s.docs.List(ctx, filter)
}

// GetDocumentSentiment retrieves the aggregated sentiment for a document.
func (s *Service) GetDocumentSentiment(ctx context.Context, id uuid.UUID) (*domain.DocumentSentiment, error) {
	return s.sentiments.GetDocumentSentiment(ctx, id)
}

// GetDocumentDeltas retrieves the market deltas for a document.
func (s *Service) GetDocumentDeltas(ctx context.Context, id uuid.UUID) ([]domain.MarketDelta, error) {
	return s.markets.ListDeltas(ctx, id)
}

// ListCorrelations retrieves the persisted results for a grouping spec.
func (s *Service) ListCorrelations(ctx context.Context, dims []domain.GroupDimension) ([]domain.CorrelationResult, error) {
	return s.correlations.ListResults(ctx, dims)
}

func (s *Service) advanceState(ctx context.Context, doc *domain.Document, target domain.DocumentState) error {
	if stateRank[doc.State] >= stateRank[target] {
		return nil
	}
	if err := s.docs.SetState(ctx, doc.ID, target); err != nil {
		return fmt.Errorf("advance %s to %s: %w", doc.ID, target, err)
	}
	return nil
}
