package vectorstore

import (
	"context"

	"github.com/fyrsmithlabs/newsrag/internal/document"
)

// EmbeddingFunc embeds a query string. Its dimension must match the vectors
// passed to AddDocuments.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// SearchResult is a retrieved document with its similarity to the query.
type SearchResult struct {
	Document document.Document
	// Score is the backend similarity (higher = more similar). After MMR
	// reranking it is still the first-stage similarity.
	Score float32
}

// Store is a named collection of embedded documents.
//
// Implementations serialize all operations on one instance.
type Store interface {
	// AddDocuments inserts docs with their embeddings, which must be given in
	// the same order. A repeated id replaces the stored row.
	AddDocuments(ctx context.Context, docs []document.Document, embeddings [][]float32) error

	// SimilaritySearch returns up to k documents most similar to query.
	SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error)

	// SearchWithScores is SimilaritySearch with similarity scores.
	SearchWithScores(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Clean removes every row from the collection.
	Clean(ctx context.Context) error

	// Save writes a durable checkpoint of the collection.
	Save(ctx context.Context) error

	// Load reopens the collection from path. On failure the store keeps its
	// current state.
	Load(ctx context.Context, path string) error

	// AddSupportedDocument registers a new document type with the store's registry.
	AddSupportedDocument(example document.Document, conv document.Converter) error

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	// Close releases the backend handle.
	Close() error
}
