// Package reranker reorders similarity-search candidates.
package reranker

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned for malformed candidates or parameters.
var ErrInvalidInput = errors.New("invalid rerank input")

// Candidate is one search hit with the vector it was stored under.
type Candidate struct {
	ID        string    // Unique identifier of the stored row
	Embedding []float32 // Stored vector
	Score     float32   // Similarity to the query from the first-stage search
}

// Ranked is a candidate with its position in the first-stage results.
type Ranked struct {
	Candidate
	RerankerScore float32 // Score from the reranker
	OriginalRank  int     // Position in the first-stage results (0-indexed)
}

// Reranker picks and orders up to topK of the candidates for query.
type Reranker interface {
	// Rerank returns at most topK candidates in their new order.
	// topK <= 0 means all candidates.
	Rerank(ctx context.Context, query []float32, candidates []Candidate, topK int) ([]Ranked, error)
}
