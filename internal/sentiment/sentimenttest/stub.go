// Package sentimenttest provides deterministic scorer and tokenizer stubs
// for tests.
package sentimenttest

import (
	"context"
	"strings"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

// WordTokenizer counts whitespace-separated words. Deterministic and cheap,
// it stands in for the scorer-defined tokenizer in tests.
type WordTokenizer struct{}

func (WordTokenizer) CountTokens(_ context.Context, text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// StubScorer returns a fixed triple, or delegates to Fn when set.
type StubScorer struct {
	Probs domain.Probabilities
	Fn    func(ctx context.Context, text string) (domain.Probabilities, error)
}

func (s *StubScorer) Score(ctx context.Context, text string) (domain.Probabilities, error) {
	if s.Fn != nil {
		return s.Fn(ctx, text)
	}
	return s.Probs, nil
}
