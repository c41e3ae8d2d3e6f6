// Package vectorstore stores embedded documents in a named collection and
// serves similarity queries over them.
//
// Two backends implement Store:
//
//   - ChromemStore: embedded chromem-go. The collection lives in memory and
//     is checkpointed to <persist_dir>/<collection>.gob (or .gob.gz) by Save.
//   - QdrantStore: a remote Qdrant server over gRPC. The server is durable,
//     so Save is a no-op and Load is unsupported.
//
// # Documents
//
// Callers add typed documents together with precomputed embeddings:
//
//	err := store.AddDocuments(ctx, []document.Document{doc}, [][]float32{vec})
//
// Each row persists the document's metadata projection. At query time the
// projection's "type" tag selects a converter from the store's
// document.Registry, which rebuilds the typed document. New document types are
// registered with AddSupportedDocument; no store code changes are needed.
//
// A repeated id overwrites the earlier row, also within one batch.
//
// # Search
//
// SimilaritySearch embeds the query with the store's EmbeddingFunc and
// returns up to k documents, most similar first. With SearchType "mmr" the
// store fetches FetchK candidates and picks k of them with maximal marginal
// relevance.
//
// # Errors
//
// Every failing operation returns an *OpError whose Kind is one of
// ErrInitialization, ErrDocumentAddition, ErrSimilaritySearch, ErrCleaning,
// ErrSaving or ErrLoading. Use errors.Is with either the kind or the
// underlying cause. Stored rows whose type has no converter surface as
// document.ErrUnknownDocumentType. Nothing is retried.
package vectorstore
