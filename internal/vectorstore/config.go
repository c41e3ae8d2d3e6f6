package vectorstore

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/fyrsmithlabs/newsrag/internal/reranker"
)

// Backends.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// Search types.
const (
	SearchSimilarity = "similarity"
	SearchMMR        = "mmr"
)

// collectionNamePattern validates collection names: lowercase letters,
// digits, underscores and hyphens, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Config configures a Store.
type Config struct {
	// Provider is "chromem" (default) or "qdrant".
	Provider string

	// PersistDir is the chromem checkpoint directory.
	// Default: "~/.local/share/newsrag/vectorstore"
	PersistDir string

	// Collection is the collection name. Default: "the_batch"
	Collection string

	// Compress gzips chromem checkpoints.
	Compress bool

	// SearchType is "similarity" (default) or "mmr".
	SearchType string

	// FetchK is the MMR candidate pool size. Default: 20
	FetchK int

	// Lambda is the MMR relevance weight in (0, 1]. Zero means the default 0.5.
	Lambda float64

	// VectorSize is the embedding dimension. Optional for chromem, where a
	// positive value is checked against a reopened collection; required for
	// qdrant, where it sizes the collection.
	VectorSize int

	// Qdrant holds the qdrant connection settings.
	Qdrant QdrantConfig
}

// QdrantConfig holds the Qdrant gRPC connection settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the gRPC port (not the 6333 REST port). Default: 6334
	Port int

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud.
	APIKey config.Secret

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderChromem
	}
	if c.PersistDir == "" {
		c.PersistDir = "~/.local/share/newsrag/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "the_batch"
	}
	if c.SearchType == "" {
		c.SearchType = SearchSimilarity
	}
	if c.FetchK == 0 {
		c.FetchK = 20
	}
	if c.Lambda == 0 {
		c.Lambda = reranker.DefaultLambda
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Qdrant.MaxMessageSize == 0 {
		c.Qdrant.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderChromem, ProviderQdrant:
	default:
		return fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, c.Provider)
	}
	if err := ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.SearchType {
	case SearchSimilarity, SearchMMR:
	default:
		return fmt.Errorf("%w: unsupported search type %q", ErrInvalidConfig, c.SearchType)
	}
	if c.FetchK <= 0 {
		return fmt.Errorf("%w: fetch_k must be positive", ErrInvalidConfig)
	}
	if math.IsNaN(c.Lambda) || c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("%w: lambda must be within [0, 1]", ErrInvalidConfig)
	}
	if c.VectorSize < 0 {
		return fmt.Errorf("%w: vector size must not be negative", ErrInvalidConfig)
	}
	if c.Provider == ProviderQdrant {
		if c.VectorSize == 0 {
			return fmt.Errorf("%w: qdrant requires vector size", ErrInvalidConfig)
		}
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant host required", ErrInvalidConfig)
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.Qdrant.Port)
		}
	}
	return nil
}

// ValidateCollectionName validates a collection name.
// Rejects uppercase, path separators, spaces and names over 64 characters.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
