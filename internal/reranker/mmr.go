package reranker

import (
	"context"
	"fmt"
	"math"
)

// DefaultLambda weighs relevance and diversity equally.
const DefaultLambda = 0.5

// MMR implements maximal marginal relevance. Each step picks the candidate
// maximizing
//
//	lambda*sim(query, d) - (1-lambda)*max(sim(d, s) for s in selected)
//
// so lambda=1 is plain similarity ranking and lambda=0 maximizes diversity.
type MMR struct {
	lambda float64
}

// NewMMR returns an MMR reranker. lambda must be within [0, 1].
func NewMMR(lambda float64) (*MMR, error) {
	if math.IsNaN(lambda) || lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: lambda must be within [0, 1], got %v", ErrInvalidInput, lambda)
	}
	return &MMR{lambda: lambda}, nil
}

// Lambda returns the relevance weight.
func (m *MMR) Lambda() float64 {
	return m.lambda
}

// Rerank selects topK candidates greedily.
func (m *MMR) Rerank(ctx context.Context, query []float32, candidates []Candidate, topK int) ([]Ranked, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", ErrInvalidInput)
	}
	for i, c := range candidates {
		if len(c.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: candidate %d has %d values, query has %d", ErrInvalidInput, i, len(c.Embedding), len(query))
		}
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if topK == 0 {
		return []Ranked{}, nil
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosine(query, c.Embedding)
	}

	// maxSim[i] is the highest similarity of candidate i to anything selected so far.
	maxSim := make([]float64, len(candidates))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}
	selected := make([]bool, len(candidates))
	out := make([]Ranked, 0, topK)

	for len(out) < topK {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if selected[i] {
				continue
			}
			redundancy := 0.0
			if len(out) > 0 {
				redundancy = maxSim[i]
			}
			score := m.lambda*relevance[i] - (1-m.lambda)*redundancy
			// Ties keep first-stage order.
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		selected[best] = true
		out = append(out, Ranked{
			Candidate:     candidates[best],
			RerankerScore: float32(bestScore),
			OriginalRank:  best,
		})

		for i := range candidates {
			if !selected[i] {
				if s := cosine(candidates[i].Embedding, candidates[best].Embedding); s > maxSim[i] {
					maxSim[i] = s
				}
			}
		}
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Reranker = (*MMR)(nil)
