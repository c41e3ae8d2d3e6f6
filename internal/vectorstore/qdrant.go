package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Payload keys of a stored point.
const (
	payloadContent  = "content"
	payloadDocID    = "doc_id"
	payloadMetadata = "metadata"
)

// pointNamespace derives point UUIDs from document ids. Qdrant only accepts
// unsigned integers and UUIDs as point ids.
var pointNamespace = uuid.MustParse("6f1c6c2e-9b0e-4c55-8a77-3f2b0d1e5a90")

// qdrantClient is the subset of *qdrant.Client the store uses.
type qdrantClient interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Close() error
}

// QdrantStore implements Store on a Qdrant collection over gRPC.
//
// Points carry the document content, its id and its metadata in the payload.
// Qdrant persists on its own, so Save is a no-op and Load is unsupported.
type QdrantStore struct {
	*base
	client qdrantClient
}

// NewQdrantStore connects to Qdrant and ensures the collection exists with
// cfg.VectorSize dimensions and cosine distance.
func NewQdrantStore(cfg Config, embed EmbeddingFunc, registry *document.Registry, logger *zap.Logger) (*QdrantStore, error) {
	b, err := newBase(ProviderQdrant, cfg, embed, registry, logger)
	if err != nil {
		return nil, opError("initialize", ErrInitialization, cfg.Collection, err)
	}

	qc := b.cfg.Qdrant
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   qc.Host,
		Port:   qc.Port,
		APIKey: qc.APIKey.Value(),
		UseTLS: qc.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(qc.MaxMessageSize),
				grpc.MaxCallSendMsgSize(qc.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, b.fail("initialize", ErrInitialization, fmt.Errorf("creating qdrant client: %w", err))
	}

	s, err := newQdrantStore(context.Background(), b, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	b.logger.Info("QdrantStore initialized",
		zap.String("host", qc.Host),
		zap.Int("port", qc.Port),
		zap.Bool("tls", qc.UseTLS),
		zap.Int("vector_size", b.cfg.VectorSize),
		zap.String("search_type", b.cfg.SearchType),
	)
	return s, nil
}

// newQdrantStoreWithClient builds a store around an existing client.
func newQdrantStoreWithClient(ctx context.Context, cfg Config, embed EmbeddingFunc, registry *document.Registry, logger *zap.Logger, client qdrantClient) (*QdrantStore, error) {
	b, err := newBase(ProviderQdrant, cfg, embed, registry, logger)
	if err != nil {
		return nil, opError("initialize", ErrInitialization, cfg.Collection, err)
	}
	return newQdrantStore(ctx, b, client)
}

func newQdrantStore(ctx context.Context, b *base, client qdrantClient) (*QdrantStore, error) {
	if _, err := client.HealthCheck(ctx); err != nil {
		return nil, b.fail("initialize", ErrInitialization, fmt.Errorf("qdrant health check: %w", err))
	}
	s := &QdrantStore{base: b, client: client}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, b.fail("initialize", ErrInitialization, err)
	}
	return s, nil
}

// ensureCollection creates the collection if it is missing and otherwise
// checks its vector size.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	name := s.cfg.Collection
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return s.createCollection(ctx)
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return fmt.Errorf("getting collection %s: %w", name, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != uint64(s.cfg.VectorSize) {
		return fmt.Errorf("collection %s has vector size %d, configured %d", name, size, s.cfg.VectorSize)
	}
	return nil
}

func (s *QdrantStore) createCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.cfg.Collection, err)
	}
	s.logger.Info("created qdrant collection", zap.Int("vector_size", s.cfg.VectorSize))
	return nil
}

// pointID maps a document id to a stable point UUID.
func pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// AddDocuments upserts docs with their precomputed embeddings.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []document.Document, embeddings [][]float32) error {
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
	if dim := len(rows[0].embedding); dim != s.cfg.VectorSize {
		return o.end(s.fail(op, ErrDocumentAddition,
			fmt.Errorf("%w: embeddings have %d values, collection expects %d", ErrInvalidInput, dim, s.cfg.VectorSize)))
	}

	points := make([]*qdrant.PointStruct, len(rows))
	for i, r := range rows {
		meta := make(map[string]*qdrant.Value, len(r.record.Metadata))
		for k, v := range r.record.Metadata {
			meta[k] = qdrant.NewValueString(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(r.record.ID)),
			Vectors: qdrant.NewVectors(r.embedding...),
			Payload: map[string]*qdrant.Value{
				payloadContent:  qdrant.NewValueString(r.record.Content),
				payloadDocID:    qdrant.NewValueString(r.record.ID),
				payloadMetadata: qdrant.NewValueStruct(&qdrant.Struct{Fields: meta}),
			},
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return o.end(s.fail(op, ErrDocumentAddition, fmt.Errorf("upserting points: %w", err)))
	}

	s.refreshCount(ctx)
	s.logger.Debug("upserted points to qdrant", zap.Int("count", len(points)))
	return o.end(nil)
}

// refreshCount updates the document gauge; failures are only logged.
func (s *QdrantStore) refreshCount(ctx context.Context) {
	n, err := s.count(ctx)
	if err != nil {
		s.logger.Debug("failed to count qdrant points", zap.Error(err))
		return
	}
	recordDocuments(ProviderQdrant, s.cfg.Collection, n)
}

func (s *QdrantStore) count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// SimilaritySearch returns up to k documents most similar to query.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error) {
	results, err := s.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return documentsOf(results), nil
}

// SearchWithScores returns up to k results most similar to query.
func (s *QdrantStore) SearchWithScores(ctx context.Context, query string, k int) ([]SearchResult, error) {
	const op = "similarity_search"
	ctx, o := s.begin(ctx, op, attribute.Int("k", k))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrSimilaritySearch); err != nil {
		return nil, o.end(err)
	}

	results, err := s.search(ctx, query, k, func(ctx context.Context, vec []float32, n int) ([]hit, error) {
		if len(vec) != s.cfg.VectorSize {
			return nil, fmt.Errorf("query vector has %d values, collection expects %d", len(vec), s.cfg.VectorSize)
		}
		points, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(vec...),
			Limit:          qdrant.PtrOf(uint64(n)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(s.mmr != nil),
		})
		if err != nil {
			return nil, fmt.Errorf("querying collection %s: %w", s.cfg.Collection, err)
		}
		hits := make([]hit, len(points))
		for i, p := range points {
			hits[i] = hitFromPoint(p)
		}
		return hits, nil
	})
	if err != nil {
		return nil, o.end(err)
	}

	o.span.SetAttributes(attribute.Int("results_count", len(results)))
	s.logger.Debug("searched qdrant collection", zap.Int("k", k), zap.Int("results", len(results)))
	return results, o.end(nil)
}

func hitFromPoint(p *qdrant.ScoredPoint) hit {
	payload := p.GetPayload()
	rec := document.Record{
		ID:       payload[payloadDocID].GetStringValue(),
		Content:  payload[payloadContent].GetStringValue(),
		Metadata: map[string]string{},
	}
	if rec.ID == "" {
		rec.ID = p.GetId().GetUuid()
	}
	for k, v := range payload[payloadMetadata].GetStructValue().GetFields() {
		rec.Metadata[k] = v.GetStringValue()
	}

	var embedding []float32
	if v := p.GetVectors().GetVector(); v != nil {
		embedding = v.GetDense().GetData()
		if len(embedding) == 0 {
			embedding = v.GetData() //nolint:staticcheck // servers before 1.10 only fill the flat field
		}
	}
	return hit{record: rec, embedding: embedding, score: p.GetScore()}
}

// Clean drops and recreates the collection.
func (s *QdrantStore) Clean(ctx context.Context) error {
	const op = "clean"
	ctx, o := s.begin(ctx, op)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrCleaning); err != nil {
		return o.end(err)
	}
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return o.end(s.fail(op, ErrCleaning, fmt.Errorf("deleting collection: %w", err)))
	}
	if err := s.createCollection(ctx); err != nil {
		return o.end(s.fail(op, ErrCleaning, err))
	}

	recordDocuments(ProviderQdrant, s.cfg.Collection, 0)
	s.logger.Info("cleaned qdrant collection")
	return o.end(nil)
}

// Save is a no-op; Qdrant persists every acknowledged write.
func (s *QdrantStore) Save(ctx context.Context) error {
	const op = "save"
	_, o := s.begin(ctx, op)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(op, ErrSaving); err != nil {
		return o.end(err)
	}
	return o.end(nil)
}

// Load is not supported by the Qdrant backend.
func (s *QdrantStore) Load(ctx context.Context, path string) error {
	const op = "load"
	_, o := s.begin(ctx, op, attribute.String("path", path))
	return o.end(s.fail(op, ErrLoading, fmt.Errorf("%w: qdrant collections are not loaded from files", ErrUnsupported)))
}

// AddSupportedDocument registers a document type with the store's registry.
func (s *QdrantStore) AddSupportedDocument(example document.Document, conv document.Converter) error {
	return s.addSupportedDocument(example, conv)
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, s.fail("count", nil, ErrClosed)
	}
	n, err := s.count(ctx)
	if err != nil {
		return 0, s.fail("count", nil, err)
	}
	return n, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	s.logger.Info("qdrant store closed")
	return nil
}

var _ Store = (*QdrantStore)(nil)
