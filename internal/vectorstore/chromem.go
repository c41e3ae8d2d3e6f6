package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ChromemStore implements Store on an in-memory chromem-go collection.
//
// chromem-go is an embeddable vector database with no third-party
// dependencies and exact (exhaustive) cosine search. The collection is
// checkpointed as a single gob file by Save and imported again on open.
type ChromemStore struct {
	*base
	db   *chromem.DB
	coll *chromem.Collection
	dir  string
}

// NewChromemStore opens the collection checkpointed under cfg.PersistDir, or
// an empty one when there is no checkpoint yet. A nil registry means the
// default text and image converters.
func NewChromemStore(cfg Config, embed EmbeddingFunc, registry *document.Registry, logger *zap.Logger) (*ChromemStore, error) {
	b, err := newBase(ProviderChromem, cfg, embed, registry, logger)
	if err != nil {
		return nil, opError("initialize", ErrInitialization, cfg.Collection, err)
	}

	dir, err := expandPath(b.cfg.PersistDir)
	if err != nil {
		return nil, b.fail("initialize", ErrInitialization, fmt.Errorf("expanding path: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, b.fail("initialize", ErrInitialization, fmt.Errorf("creating directory %s: %w", dir, err))
	}

	db, coll, err := openChromem(context.Background(), dir, b.cfg, embed)
	if err != nil {
		return nil, b.fail("initialize", ErrInitialization, err)
	}

	s := &ChromemStore{base: b, db: db, coll: coll, dir: dir}
	recordDocuments(ProviderChromem, b.cfg.Collection, coll.Count())

	b.logger.Info("ChromemStore initialized",
		zap.String("path", dir),
		zap.Bool("compress", b.cfg.Compress),
		zap.String("search_type", b.cfg.SearchType),
		zap.Int("documents", coll.Count()),
	)
	return s, nil
}

// checkpointPath returns the checkpoint file for collection in dir.
func checkpointPath(dir, collection string, compress bool) string {
	name := collection + ".gob"
	if compress {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}

// findCheckpoint returns the existing checkpoint for the collection,
// preferring the configured compression, or "" if there is none.
func findCheckpoint(dir, collection string, compress bool) (string, error) {
	for _, c := range []bool{compress, !compress} {
		path := checkpointPath(dir, collection, c)
		fi, err := os.Stat(path)
		if err == nil {
			if fi.IsDir() {
				return "", fmt.Errorf("checkpoint %s is a directory", path)
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking checkpoint %s: %w", path, err)
		}
	}
	return "", nil
}

// openChromem builds a fresh DB holding the collection checkpointed in dir.
func openChromem(ctx context.Context, dir string, cfg Config, embed EmbeddingFunc) (*chromem.DB, *chromem.Collection, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, nil, fmt.Errorf("opening %s: not a directory", dir)
	}

	db := chromem.NewDB()
	path, err := findCheckpoint(dir, cfg.Collection, cfg.Compress)
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		if err := db.ImportFromFile(path, "", cfg.Collection); err != nil {
			return nil, nil, fmt.Errorf("importing %s: %w", path, err)
		}
	}

	// The embedding function must be passed even though queries use
	// precomputed vectors; chromem falls back to OpenAI otherwise.
	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, nil, fmt.Errorf("getting/creating collection %s: %w", cfg.Collection, err)
	}

	if cfg.VectorSize > 0 && coll.Count() > 0 {
		unit := make([]float32, cfg.VectorSize)
		unit[0] = 1
		if _, err := coll.QueryEmbedding(ctx, unit, 1, nil, nil); err != nil {
			return nil, nil, fmt.Errorf("stored vectors do not match vector size %d: %w", cfg.VectorSize, err)
		}
	}
	return db, coll, nil
}

// AddDocuments inserts docs with their precomputed embeddings.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []document.Document, embeddings [][]float32) error {
	const op = "add_documents"
	ctx, o := s.begin(ctx, op, attribute.Int("document_count", len(docs)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrDocumentAddition); err != nil {
		return o.end(err)
	}

	rows, err := prepareRows(docs, embeddings, s.registry)
	if err != nil {
		return o.end(s.fail(op, ErrDocumentAddition, err))
	}
	if len(rows) == 0 {
		return o.end(nil)
	}
	if err := s.checkDimension(ctx, rows[0].embedding); err != nil {
		return o.end(s.fail(op, ErrDocumentAddition, err))
	}

	chromemDocs := make([]chromem.Document, len(rows))
	for i, r := range rows {
		chromemDocs[i] = chromem.Document{
			ID:        r.record.ID,
			Content:   r.record.Content,
			Metadata:  r.record.Metadata,
			Embedding: r.embedding,
		}
	}

	// Embeddings are precomputed, so one worker is enough.
	if err := s.coll.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return o.end(s.fail(op, ErrDocumentAddition, err))
	}

	recordDocuments(ProviderChromem, s.cfg.Collection, s.coll.Count())
	s.logger.Debug("added documents to chromem", zap.Int("count", len(rows)))
	return o.end(nil)
}

// checkDimension rejects a batch whose vectors differ in length from
// VectorSize or, when that is unset, from the vectors already stored.
// chromem itself only compares lengths at query time.
func (s *ChromemStore) checkDimension(ctx context.Context, vec []float32) error {
	want := s.cfg.VectorSize
	if want <= 0 {
		if s.coll.Count() == 0 {
			return nil
		}
		res, err := s.coll.QueryEmbedding(ctx, vec, 1, nil, nil)
		if err != nil {
			return fmt.Errorf("%w: embeddings have %d values, stored vectors differ: %v", ErrInvalidInput, len(vec), err)
		}
		if len(res) == 0 {
			return nil
		}
		want = len(res[0].Embedding)
	}
	if len(vec) != want {
		return fmt.Errorf("%w: embeddings have %d values, collection expects %d", ErrInvalidInput, len(vec), want)
	}
	return nil
}

// SimilaritySearch returns up to k documents most similar to query.
func (s *ChromemStore) SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error) {
	results, err := s.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return documentsOf(results), nil
}

// SearchWithScores returns up to k results most similar to query.
func (s *ChromemStore) SearchWithScores(ctx context.Context, query string, k int) ([]SearchResult, error) {
	const op = "similarity_search"
	ctx, o := s.begin(ctx, op, attribute.Int("k", k))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrSimilaritySearch); err != nil {
		return nil, o.end(err)
	}

	results, err := s.search(ctx, query, k, func(ctx context.Context, vec []float32, n int) ([]hit, error) {
		count := s.coll.Count()
		if count == 0 {
			return nil, nil
		}
		// chromem requires nResults <= document count.
		if n > count {
			n = count
		}
		res, err := s.coll.QueryEmbedding(ctx, vec, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying collection %s: %w", s.cfg.Collection, err)
		}
		hits := make([]hit, len(res))
		for i, r := range res {
			hits[i] = hit{
				record: document.Record{
					ID:       r.ID,
					Content:  r.Content,
					Metadata: copyMetadata(r.Metadata),
				},
				embedding: r.Embedding,
				score:     r.Similarity,
			}
		}
		return hits, nil
	})
	if err != nil {
		return nil, o.end(err)
	}

	o.span.SetAttributes(attribute.Int("results_count", len(results)))
	s.logger.Debug("searched chromem collection", zap.Int("k", k), zap.Int("results", len(results)))
	return results, o.end(nil)
}

// Clean removes every document by recreating the collection and deleting
// its checkpoint, so a reopened store starts empty as well.
func (s *ChromemStore) Clean(ctx context.Context) error {
	const op = "clean"
	_, o := s.begin(ctx, op)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrCleaning); err != nil {
		return o.end(err)
	}

	if err := s.db.DeleteCollection(s.cfg.Collection); err != nil {
		return o.end(s.fail(op, ErrCleaning, err))
	}
	coll, err := s.db.GetOrCreateCollection(s.cfg.Collection, nil, chromem.EmbeddingFunc(s.embed))
	if err != nil {
		return o.end(s.fail(op, ErrCleaning, err))
	}
	s.coll = coll

	for _, compress := range []bool{false, true} {
		path := checkpointPath(s.dir, s.cfg.Collection, compress)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return o.end(s.fail(op, ErrCleaning, fmt.Errorf("removing checkpoint %s: %w", path, err)))
		}
	}

	recordDocuments(ProviderChromem, s.cfg.Collection, 0)
	s.logger.Info("cleaned chromem collection")
	return o.end(nil)
}

// Save writes the collection checkpoint atomically.
func (s *ChromemStore) Save(ctx context.Context) error {
	const op = "save"
	_, o := s.begin(ctx, op)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrSaving); err != nil {
		return o.end(err)
	}
	if err := s.save(); err != nil {
		return o.end(s.fail(op, ErrSaving, err))
	}

	s.logger.Info("saved chromem checkpoint",
		zap.String("path", checkpointPath(s.dir, s.cfg.Collection, s.cfg.Compress)),
		zap.Int("documents", s.coll.Count()),
	)
	return o.end(nil)
}

func (s *ChromemStore) save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", s.dir, err)
	}

	final := checkpointPath(s.dir, s.cfg.Collection, s.cfg.Compress)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(final)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := s.db.ExportToFile(tmpPath, s.cfg.Compress, "", s.cfg.Collection); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("exporting collection: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming checkpoint: %w", err)
	}

	// A checkpoint with the other compression setting is now stale.
	stale := checkpointPath(s.dir, s.cfg.Collection, !s.cfg.Compress)
	if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove stale checkpoint", zap.String("path", stale), zap.Error(err))
	}
	return nil
}

// Load reopens the collection from the checkpoint in directory path. The
// current collection stays in place unless the new one opens successfully.
func (s *ChromemStore) Load(ctx context.Context, path string) error {
	const op = "load"
	ctx, o := s.begin(ctx, op, attribute.String("path", path))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrLoading); err != nil {
		return o.end(err)
	}
	if path == "" {
		return o.end(s.fail(op, ErrLoading, fmt.Errorf("%w: path is empty", ErrInvalidInput)))
	}

	dir, err := expandPath(path)
	if err != nil {
		return o.end(s.fail(op, ErrLoading, fmt.Errorf("expanding path: %w", err)))
	}
	db, coll, err := openChromem(ctx, dir, s.cfg, s.embed)
	if err != nil {
		return o.end(s.fail(op, ErrLoading, err))
	}

	s.db, s.coll, s.dir = db, coll, dir
	s.cfg.PersistDir = path

	recordDocuments(ProviderChromem, s.cfg.Collection, coll.Count())
	s.logger.Info("loaded chromem collection", zap.String("path", dir), zap.Int("documents", coll.Count()))
	return o.end(nil)
}

// AddSupportedDocument registers a document type with the store's registry.
func (s *ChromemStore) AddSupportedDocument(example document.Document, conv document.Converter) error {
	return s.addSupportedDocument(example, conv)
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, s.fail("count", nil, ErrClosed)
	}
	return s.coll.Count(), nil
}

// PersistDir returns the directory checkpoints are written to.
func (s *ChromemStore) PersistDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Close releases the store. Unsaved changes are discarded.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.logger.Info("chromem store closed")
	}
	return nil
}

var _ Store = (*ChromemStore)(nil)
