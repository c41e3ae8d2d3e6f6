package embeddings

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// GaussianProjector reduces vector dimensionality with a Gaussian random
// matrix whose entries are drawn from N(0, 1/target). Pairwise distances are
// approximately preserved.
type GaussianProjector struct {
	seed uint64
}

// NewGaussianProjector returns a projector. The same seed always yields the
// same matrix for a given (source, target) shape.
func NewGaussianProjector(seed uint64) *GaussianProjector {
	return &GaussianProjector{seed: seed}
}

// Project maps every row of vectors to target dimensions.
func (g *GaussianProjector) Project(vectors [][]float32, target int) ([][]float32, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: target dimension must be positive, got %d", ErrInvalidInput, target)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to project", ErrInvalidInput)
	}
	source := len(vectors[0])
	if source == 0 {
		return nil, fmt.Errorf("%w: vectors are empty", ErrInvalidInput)
	}
	for i, v := range vectors {
		if len(v) != source {
			return nil, fmt.Errorf("%w: vector %d has %d values, want %d", ErrInvalidInput, i, len(v), source)
		}
	}

	matrix := g.matrix(source, target)
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		row := make([]float32, target)
		for j := 0; j < target; j++ {
			var sum float64
			col := matrix[j]
			for k, x := range v {
				sum += float64(x) * col[k]
			}
			row[j] = float32(sum)
		}
		out[i] = row
	}
	return out, nil
}

// matrix returns target rows of source Gaussian components.
func (g *GaussianProjector) matrix(source, target int) [][]float64 {
	rng := rand.New(rand.NewPCG(g.seed, uint64(source)<<32|uint64(target)))
	scale := 1 / math.Sqrt(float64(target))
	m := make([][]float64, target)
	for j := range m {
		m[j] = make([]float64, source)
		for k := range m[j] {
			m[j][k] = rng.NormFloat64() * scale
		}
	}
	return m
}
