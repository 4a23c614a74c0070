package domain

import (
	"context"
	"sort"
	"strings"
	"time"
)

// GroupDimension is a grouping axis for correlation analysis.
type GroupDimension string

const (
	GroupBySpeaker GroupDimension = "speaker"
	GroupBySource  GroupDimension = "source"
	GroupBySymbol  GroupDimension = "symbol"
	GroupByHorizon GroupDimension = "horizon"
)

// ParseGroupDimension validates a grouping dimension name.
func ParseGroupDimension(s string) (GroupDimension, error) {
	switch d := GroupDimension(s); d {
	case GroupBySpeaker, GroupBySource, GroupBySymbol, GroupByHorizon:
		return d, nil
	default:
		return "", &UnknownDimensionError{Name: s}
	}
}

type UnknownDimensionError struct{ Name string }

func (e *UnknownDimensionError) Error() string {
	return "unknown group dimension " + e.Name
}

// ObservationPair joins one document's sentiment with one of its market
// deltas. Pairs with a nil PctChange are excluded from a group's sample.
type ObservationPair struct {
	Speaker   string
	Source    string
	Symbol    string
	Horizon   Horizon
	Sentiment Probabilities
	PctChange *float64
}

// GroupKey renders the composite key for the given dimensions, in a fixed
// dimension order so the key is independent of how the spec was written.
func (p ObservationPair) GroupKey(dims []GroupDimension) string {
	ordered := make([]GroupDimension, len(dims))
	copy(ordered, dims)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	parts := make([]string, 0, len(ordered))
	for _, d := range ordered {
		switch d {
		case GroupBySpeaker:
			parts = append(parts, "speaker="+p.Speaker)
		case GroupBySource:
			parts = append(parts, "source="+p.Source)
		case GroupBySymbol:
			parts = append(parts, "symbol="+p.Symbol)
		case GroupByHorizon:
			parts = append(parts, "horizon="+string(p.Horizon))
		}
	}
	return strings.Join(parts, "|")
}

// CorrelationResult is the grouped statistic between a sentiment scalar and
// market movement. When Sufficient is false the group had fewer than the
// configured minimum pairs and Coefficient/PValue carry no meaning (nil).
type CorrelationResult struct {
	GroupKey    string
	Speaker     string
	Source      string
	Symbol      string
	Horizon     Horizon
	Coefficient *float64
	PValue      *float64
	N           int
	Sufficient  bool
	ComputedAt  time.Time
}

type CorrelationRepository interface {
	// ReplaceResults swaps the persisted result set for a grouping spec.
	ReplaceResults(ctx context.Context, dims []GroupDimension, results []CorrelationResult) error
	ListResults(ctx context.Context, dims []GroupDimension) ([]CorrelationResult, error)
	// ListPairs reads a consistent snapshot of joined sentiment and delta
	// records for the correlation engine.
	ListPairs(ctx context.Context) ([]ObservationPair, error)
}
