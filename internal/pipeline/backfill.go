package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/platform/retry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const worklistBatchSize = 500

// RunSummary reports the outcome of a batch run. Transient failures are
// eligible for retry on the next run; permanent failures are marked failed
// and need operator attention.
type RunSummary struct {
	Scored            int
	Aligned           int
	TransientFailures int
	PermanentFailures int
}

// ProcessPending drives the worklist: scores every ingested document, then
// aligns every scored one. Distinct documents are processed concurrently up
// to the configured limit. Per-document failures are isolated; only the
// inability to read the worklist itself (persistence down) fails the run.
func (s *Service) ProcessPending(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	ingested, err := s.docs.ListByState(ctx, domain.StateIngested, worklistBatchSize)
	if err != nil {
		return summary, err
	}
	s.runStage(ctx, ingested, &summary, &summary.Scored, s.ChunkAndScore)

	scored, err := s.docs.ListByState(ctx, domain.StateScored, worklistBatchSize)
	if err != nil {
		return summary, err
	}
	s.runStage(ctx, scored, &summary, &summary.Aligned, s.AlignMarket)

	slog.Info("Backfill run complete",
		"scored", summary.Scored,
		"aligned", summary.Aligned,
		"transient_failures", summary.TransientFailures,
		"permanent_failures", summary.PermanentFailures)
	return summary, nil
}

func (s *Service) runStage(ctx context.Context, docs []*domain.Document, summary *RunSummary, succeeded *int, stage func(context.Context, uuid.UUID) error) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, doc := range docs {
		doc := doc // per-iteration copy; required under go <1.22 loop semantics
		g.Go(func() error {
			err := stage(gctx, doc.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				*succeeded++
			case isPermanent(err):
				summary.PermanentFailures++
				logging.WithDocument(doc.ID.String()).Error("Document failed permanently", "error", err)
				if stateErr := s.docs.SetState(ctx, doc.ID, domain.StateFailed); stateErr != nil {
					logging.WithDocument(doc.ID.String()).Error("Failed to mark document failed", "error", stateErr)
				}
			default:
				summary.TransientFailures++
				logging.WithDocument(doc.ID.String()).Warn("Document failed transiently, will retry next run", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures land in the summary
}

// isPermanent classifies stage errors. Validation failures and errors the
// retry loop classified as permanent are not worth retrying.
func isPermanent(err error) bool {
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	return errors.Is(err, domain.ErrEmptyDocument) ||
		errors.Is(err, domain.ErrNoChunks) ||
		errors.Is(err, domain.ErrDocumentNotFound)
}
