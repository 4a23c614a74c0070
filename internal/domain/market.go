package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Horizon is a named offset from a document's publication date at which a
// market price observation is sought.
type Horizon string

const (
	Horizon1D Horizon = "1d"
	Horizon1W Horizon = "1w"
)

// Offset returns the calendar-day offset for the horizon.
func (h Horizon) Offset() (time.Duration, error) {
	switch h {
	case Horizon1D:
		return 24 * time.Hour, nil
	case Horizon1W:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown horizon %q", string(h))
	}
}

// ParseHorizon validates a horizon string.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(s)
	if _, err := h.Offset(); err != nil {
		return "", err
	}
	return h, nil
}

// Observation is a single price point from the market-data provider.
type Observation struct {
	Symbol string
	Date   time.Time
	Close  float64
}

// PriceProvider is the market-data collaborator. PriceNear searches forward
// from date for the nearest trading observation within lookaheadDays and
// returns ErrNoObservation when the window is exhausted. The provider is a
// shared, read-mostly external resource and is never mutated by the core.
type PriceProvider interface {
	PriceNear(ctx context.Context, symbol string, date time.Time, lookaheadDays int) (Observation, error)
}

// MarketDelta records the price move for one (symbol, horizon) pair after a
// document's publication. PctChange is nil exactly when no qualifying
// observation existed within the look-ahead window; it is never fabricated
// by interpolation. BasePrice is nil when even the anchor observation was
// missing.
type MarketDelta struct {
	DocumentID  uuid.UUID
	Symbol      string
	Horizon     Horizon
	BasePrice   *float64
	TargetPrice *float64
	PctChange   *float64
}

type MarketRepository interface {
	// ReplaceDeltas writes all of a document's deltas in one transaction so
	// the correlation snapshot never sees a partial set.
	ReplaceDeltas(ctx context.Context, docID uuid.UUID, deltas []MarketDelta) error
	ListDeltas(ctx context.Context, docID uuid.UUID) ([]MarketDelta, error)
}
