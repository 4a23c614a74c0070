package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/logging"
	"github.com/MessaoudiOussama/market-analytics/internal/metrics"
)

// Aligner maps a document's publication date to per-symbol, per-horizon
// market deltas. A missing observation for one pair never aborts the
// document's other pairs.
type Aligner struct {
	provider      domain.PriceProvider
	symbols       []string
	horizons      []domain.Horizon
	lookaheadDays int
}

func NewAligner(provider domain.PriceProvider, symbols []string, horizons []domain.Horizon, lookaheadDays int) *Aligner {
	return &Aligner{
		provider:      provider,
		symbols:       symbols,
		horizons:      horizons,
		lookaheadDays: lookaheadDays,
	}
}

// Align produces one MarketDelta per (symbol, horizon) pair for the
// document. The base price is the nearest observation on or forward from the
// publication date; each target price is resolved the same way from the
// horizon's target date. Pairs without a qualifying observation are recorded
// with a nil PctChange.
func (a *Aligner) Align(ctx context.Context, doc *domain.Document) []domain.MarketDelta {
	anchor := truncateToDay(doc.PublishedAt)

	deltas := make([]domain.MarketDelta, 0, len(a.symbols)*len(a.horizons))
	for _, symbol := range a.symbols {
		base, baseErr := a.provider.PriceNear(ctx, symbol, anchor, a.lookaheadDays)
		if baseErr != nil {
			a.logMiss(doc, symbol, "base", baseErr)
		}

		for _, horizon := range a.horizons {
			delta := domain.MarketDelta{DocumentID: doc.ID, Symbol: symbol, Horizon: horizon}
			if baseErr == nil {
				price := base.Close
				delta.BasePrice = &price
				a.resolveTarget(ctx, &delta, anchor, base.Close)
			}
			deltas = append(deltas, delta)
			metrics.MarketDeltasTotal.WithLabelValues(string(horizon), deltaStatus(delta)).Inc()
		}
	}
	return deltas
}

func (a *Aligner) resolveTarget(ctx context.Context, delta *domain.MarketDelta, anchor time.Time, basePrice float64) {
	offset, err := delta.Horizon.Offset()
	if err != nil {
		slog.Error("Skipping unknown horizon", "horizon", string(delta.Horizon), "error", err)
		return
	}

	target, err := a.provider.PriceNear(ctx, delta.Symbol, anchor.Add(offset), a.lookaheadDays)
	if err != nil {
		a.logMiss(&domain.Document{ID: delta.DocumentID}, delta.Symbol, string(delta.Horizon), err)
		return
	}

	price := target.Close
	delta.TargetPrice = &price
	if basePrice != 0 {
		pct := (target.Close - basePrice) / basePrice
		delta.PctChange = &pct
	}
}

func (a *Aligner) logMiss(doc *domain.Document, symbol, stage string, err error) {
	log := logging.WithDocument(doc.ID.String())
	if errors.Is(err, domain.ErrNoObservation) {
		log.Debug("No observation within window", "symbol", symbol, "stage", stage)
		return
	}
	log.Error("Price lookup failed", "symbol", symbol, "stage", stage, "error", err)
}

func deltaStatus(d domain.MarketDelta) string {
	if d.PctChange != nil {
		return "ok"
	}
	return "missing"
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
