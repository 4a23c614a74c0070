// Package correlate computes grouped Pearson correlations between a
// document-sentiment scalar and market price deltas.
package correlate

import (
	"math"
	"sort"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Formula selects the sentiment scalar fed into the correlation.
type Formula string

const (
	// FormulaNet is the compound score: positive minus negative.
	FormulaNet Formula = "net"
	// FormulaConfidence is the winning probability, signed by label.
	FormulaConfidence Formula = "confidence"
)

// Scalar maps a probability triple to the correlation input.
func (f Formula) Scalar(p domain.Probabilities) float64 {
	switch f {
	case FormulaConfidence:
		switch p.Label() {
		case domain.LabelPositive:
			return p.Max()
		case domain.LabelNegative:
			return -p.Max()
		default:
			return 0
		}
	default:
		return p.Net()
	}
}

// Spec configures one correlation run.
type Spec struct {
	Dimensions    []domain.GroupDimension
	MinSampleSize int
	Formula       Formula
}

type group struct {
	speaker string
	source  string
	symbol  string
	horizon domain.Horizon
	xs, ys  []float64
}

// Compute partitions the joined pairs by the spec's dimensions and computes
// per-group statistics. Pairs with a nil PctChange do not count toward a
// group's sample. The result for a group depends only on the set of pairs in
// it, never their order; output is sorted by group key.
func Compute(pairs []domain.ObservationPair, spec Spec, now time.Time) []domain.CorrelationResult {
	groups := make(map[string]*group)

	for _, pair := range pairs {
		if pair.PctChange == nil {
			continue
		}
		key := pair.GroupKey(spec.Dimensions)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			for _, d := range spec.Dimensions {
				switch d {
				case domain.GroupBySpeaker:
					g.speaker = pair.Speaker
				case domain.GroupBySource:
					g.source = pair.Source
				case domain.GroupBySymbol:
					g.symbol = pair.Symbol
				case domain.GroupByHorizon:
					g.horizon = pair.Horizon
				}
			}
			groups[key] = g
		}
		g.xs = append(g.xs, spec.Formula.Scalar(pair.Sentiment))
		g.ys = append(g.ys, *pair.PctChange)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]domain.CorrelationResult, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		result := domain.CorrelationResult{
			GroupKey:   key,
			Speaker:    g.speaker,
			Source:     g.source,
			Symbol:     g.symbol,
			Horizon:    g.horizon,
			N:          len(g.xs),
			ComputedAt: now,
		}

		if len(g.xs) >= spec.MinSampleSize {
			result.Sufficient = true
			// Sort jointly so the coefficient is invariant under input
			// permutation down to the last floating-point bit.
			sortPaired(g.xs, g.ys)
			if r := stat.Correlation(g.xs, g.ys, nil); !math.IsNaN(r) {
				result.Coefficient = &r
				if p, ok := pValue(r, len(g.xs)); ok {
					result.PValue = &p
				}
			}
		}
		results = append(results, result)
	}
	return results
}

// pValue is the two-sided significance of r under a Student's t distribution
// with n-2 degrees of freedom. Undefined for n <= 2 or |r| = 1.
func pValue(r float64, n int) (float64, bool) {
	if n <= 2 || math.Abs(r) >= 1 {
		return 0, false
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.CDF(-math.Abs(t)), true
}

func sortPaired(xs, ys []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if xs[idx[a]] != xs[idx[b]] {
			return xs[idx[a]] < xs[idx[b]]
		}
		return ys[idx[a]] < ys[idx[b]]
	})
	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range idx {
		sx[i] = xs[j]
		sy[i] = ys[j]
	}
	copy(xs, sx)
	copy(ys, sy)
}
