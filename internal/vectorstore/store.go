package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/reranker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("newsrag.vectorstore")

// base holds what both backends share: configuration, the query embedder,
// the type registry and the lock serializing operations.
type base struct {
	mu       sync.Mutex
	provider string
	cfg      Config
	embed    EmbeddingFunc
	registry *document.Registry
	mmr      *reranker.MMR
	logger   *zap.Logger
	closed   bool
}

func newBase(provider string, cfg Config, embed EmbeddingFunc, registry *document.Registry, logger *zap.Logger) (*base, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = document.NewRegistry()
	}
	cfg.Provider = provider
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embed == nil {
		return nil, fmt.Errorf("%w: embedding function is required", ErrInvalidConfig)
	}

	b := &base{
		provider: provider,
		cfg:      cfg,
		embed:    embed,
		registry: registry,
		logger:   logger.With(zap.String("provider", provider), zap.String("collection", cfg.Collection)),
	}
	if cfg.SearchType == SearchMMR {
		mmr, err := reranker.NewMMR(cfg.Lambda)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		b.mmr = mmr
	}
	return b, nil
}

// operation is one traced, timed and logged store call.
type operation struct {
	b     *base
	name  string
	span  trace.Span
	start time.Time
}

func (b *base) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := tracer.Start(ctx, "vectorstore."+name)
	span.SetAttributes(
		attribute.String("provider", b.provider),
		attribute.String("collection", b.cfg.Collection),
	)
	span.SetAttributes(attrs...)
	return ctx, &operation{b: b, name: name, span: span, start: time.Now()}
}

// end closes the span, records metrics and logs err. It returns err.
func (o *operation) end(err error) error {
	defer o.span.End()
	recordOperation(o.b.provider, o.name, time.Since(o.start), err)

	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.b.logger.Error("vector store operation failed",
			zap.String("op", o.name),
			zap.Error(err),
		)
		return err
	}
	o.span.SetStatus(codes.Ok, "success")
	return nil
}

func (b *base) fail(op string, kind error, err error) error {
	return opError(op, kind, b.cfg.Collection, err)
}

func (b *base) checkOpen(op string, kind error) error {
	if b.closed {
		return b.fail(op, kind, ErrClosed)
	}
	return nil
}

// poolSize is how many nearest rows to fetch for a k-result search.
func (b *base) poolSize(k int) int {
	if b.mmr != nil && b.cfg.FetchK > k {
		return b.cfg.FetchK
	}
	return k
}

// hit is a raw backend result.
type hit struct {
	record    document.Record
	embedding []float32
	score     float32
}

// selectHits trims hits to k, reranking them with MMR when configured.
func (b *base) selectHits(ctx context.Context, query []float32, hits []hit, k int) ([]hit, error) {
	if b.mmr == nil {
		if len(hits) > k {
			hits = hits[:k]
		}
		return hits, nil
	}

	candidates := make([]reranker.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = reranker.Candidate{ID: h.record.ID, Embedding: h.embedding, Score: h.score}
	}
	ranked, err := b.mmr.Rerank(ctx, query, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}
	out := make([]hit, len(ranked))
	for i, r := range ranked {
		out[i] = hits[r.OriginalRank]
	}
	return out, nil
}

// search runs the shared part of a similarity query. query embeds the text
// and asks the backend for up to n nearest rows.
func (b *base) search(ctx context.Context, text string, k int, query func(ctx context.Context, vec []float32, n int) ([]hit, error)) ([]SearchResult, error) {
	const op = "similarity_search"
	if err := validateK(k); err != nil {
		return nil, b.fail(op, ErrSimilaritySearch, err)
	}
	if text == "" {
		return nil, b.fail(op, ErrSimilaritySearch, fmt.Errorf("%w: query is empty", ErrInvalidInput))
	}

	vec, err := b.embed(ctx, text)
	if err != nil {
		return nil, b.fail(op, ErrSimilaritySearch, fmt.Errorf("embedding query: %w", err))
	}
	if len(vec) == 0 {
		return nil, b.fail(op, ErrSimilaritySearch, errors.New("embedding function returned an empty vector"))
	}

	hits, err := query(ctx, vec, b.poolSize(k))
	if err != nil {
		return nil, b.fail(op, ErrSimilaritySearch, err)
	}
	hits, err = b.selectHits(ctx, vec, hits, k)
	if err != nil {
		return nil, b.fail(op, ErrSimilaritySearch, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, err := b.registry.Convert(h.record)
		if err != nil {
			if errors.Is(err, document.ErrUnknownDocumentType) {
				return nil, b.fail(op, document.ErrUnknownDocumentType, err)
			}
			return nil, b.fail(op, ErrSimilaritySearch, fmt.Errorf("converting %s: %w", h.record.ID, err))
		}
		results = append(results, SearchResult{Document: doc, Score: h.score})
	}
	return results, nil
}

func (b *base) addSupportedDocument(example document.Document, conv document.Converter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.registry.Register(example, conv); err != nil {
		if errors.Is(err, document.ErrInvalidDocumentType) {
			return fmt.Errorf("registering document type: %w", err)
		}
		return b.fail("add_supported_document", ErrDocumentAddition, err)
	}
	b.logger.Info("registered document type", zap.String("type", example.Type()))
	return nil
}

func documentsOf(results []SearchResult) []document.Document {
	docs := make([]document.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
