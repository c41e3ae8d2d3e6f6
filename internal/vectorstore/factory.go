package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/fyrsmithlabs/newsrag/internal/document"
	"go.uber.org/zap"
)

// StoreOption configures NewStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	registry *document.Registry
	logger   *zap.Logger
}

// WithRegistry sets the document type registry. The default registry knows
// the text and image document types.
func WithRegistry(r *document.Registry) StoreOption {
	return func(o *storeOptions) { o.registry = r }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// NewStore creates the backend named by cfg.Provider:
//   - "chromem" (default): embedded store checkpointed to cfg.PersistDir
//   - "qdrant": remote Qdrant collection, requires cfg.VectorSize
//
// Example usage:
//
//	store, err := vectorstore.NewStore(cfg, embeddings.QueryFunc(provider),
//	    vectorstore.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewStore(cfg Config, embed EmbeddingFunc, opts ...StoreOption) (Store, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Provider {
	case ProviderChromem, "":
		return NewChromemStore(cfg, embed, o.registry, o.logger)
	case ProviderQdrant:
		return NewQdrantStore(cfg, embed, o.registry, o.logger)
	default:
		return nil, opError("initialize", ErrInitialization, cfg.Collection,
			fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider))
	}
}

// ConfigFrom maps the application configuration onto a store Config.
// vectorSize is the embedding dimension of the active provider.
func ConfigFrom(c *config.Config, vectorSize int) Config {
	cfg := Config{
		Provider:   c.VectorStore.Provider,
		PersistDir: c.VectorStore.PersistDir,
		Collection: c.VectorStore.Collection,
		Compress:   c.VectorStore.Compress,
		SearchType: c.VectorStore.SearchType,
		FetchK:     c.VectorStore.FetchK,
		Lambda:     c.VectorStore.Lambda,
		VectorSize: c.VectorStore.VectorSize,
		Qdrant: QdrantConfig{
			Host:   c.Qdrant.Host,
			Port:   c.Qdrant.Port,
			UseTLS: c.Qdrant.UseTLS,
			APIKey: c.Qdrant.APIKey,
		},
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = vectorSize
	}
	return cfg
}
