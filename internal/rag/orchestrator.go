// Package rag answers questions from the news collection: it retrieves the
// nearest documents, joins their contents into a context and asks a language
// model to answer from that context alone.
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultK is the number of documents retrieved per query.
const DefaultK = 5

var tracer = otel.Tracer("newsrag.rag")

// State is the orchestrator's processing state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Orchestrator runs retrieval-augmented queries against one store.
//
// Queries are serialized; State reports whether one is in flight.
type Orchestrator struct {
	store   vectorstore.Store
	model   llms.Model
	tmpl    prompts.PromptTemplate
	logger  *logging.Logger
	metrics *queryMetrics

	mu    sync.Mutex
	state atomic.Int32
}

// NewOrchestrator validates tmpl and returns an idle Orchestrator. A nil
// logger disables logging.
func NewOrchestrator(store vectorstore.Store, model llms.Model, tmpl prompts.PromptTemplate, logger *logging.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Named("rag")
	ctx := context.Background()
	logger.Info(ctx, "initializing orchestrator")

	if store == nil {
		return nil, fmt.Errorf("%w: vector store is nil", ErrInitialization)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: language model is nil", ErrInitialization)
	}
	if err := validateTemplate(tmpl); err != nil {
		logger.Error(ctx, "invalid prompt template", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	logger.Info(ctx, "orchestrator initialized")
	return &Orchestrator{
		store:   store,
		model:   model,
		tmpl:    tmpl,
		logger:  logger,
		metrics: newQueryMetrics(nil, logger),
	}, nil
}

// State returns the current processing state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Query answers userQuery from the k most similar documents. k <= 0 means
// DefaultK.
func (o *Orchestrator) Query(ctx context.Context, userQuery string, k int) (*Response, error) {
	if strings.TrimSpace(userQuery) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if k <= 0 {
		k = DefaultK
	}
	if logging.QueryIDFromContext(ctx) == "" {
		ctx = logging.WithQueryID(ctx, uuid.NewString())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Store(int32(StateProcessing))
	defer o.state.Store(int32(StateIdle))

	ctx, span := tracer.Start(ctx, "rag.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	start := time.Now()
	o.logger.Info(ctx, "processing user query", zap.String("query", userQuery), zap.Int("k", k))

	resp, err := o.query(ctx, userQuery, k)
	docs := 0
	if resp != nil {
		docs = len(resp.RelevantDocs)
	}
	o.metrics.record(ctx, start, docs, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error(ctx, "user query failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	span.SetAttributes(attribute.Int("relevant_docs", len(resp.RelevantDocs)))
	span.SetStatus(codes.Ok, "success")
	o.logger.Info(ctx, "processed user query",
		zap.Int("relevant_docs", len(resp.RelevantDocs)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func (o *Orchestrator) query(ctx context.Context, userQuery string, k int) (*Response, error) {
	docs, err := o.store.SimilaritySearch(ctx, userQuery, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	prompt, err := o.tmpl.Format(map[string]any{
		VarContext:   buildContext(docs),
		VarUserQuery: userQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrompt, err)
	}
	o.logger.Trace(ctx, "prompt rendered", zap.Int("chars", len(prompt)))

	answer, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return &Response{UserQuery: userQuery, LLMResponse: answer, RelevantDocs: docs}, nil
}

// buildContext concatenates document contents in retrieval order.
func buildContext(docs []document.Document) string {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Content())
	}
	return b.String()
}

// RelevantDocs returns the k documents most similar to userQuery.
func (o *Orchestrator) RelevantDocs(ctx context.Context, userQuery string, k int) ([]document.Document, error) {
	if k <= 0 {
		k = DefaultK
	}
	docs, err := o.store.SimilaritySearch(ctx, userQuery, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return docs, nil
}

// UpdateVectorStore adds docs with their embeddings to the store.
func (o *Orchestrator) UpdateVectorStore(ctx context.Context, docs []document.Document, embeddings [][]float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.AddDocuments(ctx, docs, embeddings)
}

// CleanVectorStore removes every document from the store.
func (o *Orchestrator) CleanVectorStore(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Clean(ctx)
}
