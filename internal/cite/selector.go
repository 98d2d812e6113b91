// Package cite turns per-sentence attribution scores into citation markers.
package cite

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrEmptyScores is returned when a sentence has no attribution scores
	ErrEmptyScores = errors.New("empty attribution scores")
	// ErrInvalidScore is returned for negative or NaN attribution scores
	ErrInvalidScore = errors.New("invalid attribution score")
)

// Selector picks the context sources a sentence cites
type Selector struct {
	MinAbs       float64 // Absolute score floor
	MaxRatio     float64 // Floor relative to the row maximum
	MaxCitations int     // Upper bound on citations per sentence
}

// DefaultSelector returns the thresholds used by the study
func DefaultSelector() Selector {
	return Selector{
		MinAbs:       5,
		MaxRatio:     0.3,
		MaxCitations: 3,
	}
}

// Select returns 0-based source indices ordered by descending score.
// A source qualifies when its score reaches both MinAbs and MaxRatio times the
// row maximum. Equal scores keep ascending index order.
func (s Selector) Select(scores []float64) ([]int, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyScores
	}

	best := math.Inf(-1)
	for i, v := range scores {
		if math.IsNaN(v) || v < 0 {
			return nil, fmt.Errorf("%w: column %d is %v", ErrInvalidScore, i, v)
		}
		best = max(best, v)
	}

	floor := max(s.MinAbs, best*s.MaxRatio)
	candidates := make([]int, 0, len(scores))
	for i, v := range scores {
		if v >= floor {
			candidates = append(candidates, i)
		}
	}

	slices.SortStableFunc(candidates, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})

	if s.MaxCitations >= 0 && len(candidates) > s.MaxCitations {
		candidates = candidates[:s.MaxCitations]
	}

	return candidates, nil
}
