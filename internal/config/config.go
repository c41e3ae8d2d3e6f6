// Package config provides configuration loading for newsrag.
//
// Values come from, in order of precedence: NEWSRAG_* environment variables,
// an optional YAML file, and the defaults in this package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete newsrag configuration.
type Config struct {
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	LLM         LLMConfig         `koanf:"llm"`
	Fetch       FetchConfig       `koanf:"fetch"`
	Splitter    SplitterConfig    `koanf:"splitter"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Server      ServerConfig      `koanf:"server"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Provider   string  `koanf:"provider" validate:"oneof=chromem qdrant"`
	PersistDir string  `koanf:"persist_dir" validate:"required_if=Provider chromem"`
	Collection string  `koanf:"collection" validate:"required,max=64"`
	Compress   bool    `koanf:"compress"`
	SearchType string  `koanf:"search_type" validate:"oneof=similarity mmr"`
	FetchK     int     `koanf:"fetch_k" validate:"gte=0"`
	Lambda     float64 `koanf:"lambda" validate:"gte=0,lte=1"`
	VectorSize int     `koanf:"vector_size" validate:"gte=0"`
}

// QdrantConfig configures the remote qdrant backend.
type QdrantConfig struct {
	Host   string `koanf:"host" validate:"required"`
	Port   int    `koanf:"port" validate:"min=1,max=65535"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// EmbeddingsConfig configures the text embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider" validate:"oneof=fastembed tei"`
	Model    string `koanf:"model" validate:"required"`
	BaseURL  string `koanf:"base_url" validate:"omitempty,url"`
	CacheDir string `koanf:"cache_dir"`
}

// LLMConfig configures the answer model and the captioning model.
type LLMConfig struct {
	ServerURL   string `koanf:"server_url" validate:"omitempty,url"`
	Model       string `koanf:"model" validate:"required"`
	VisionModel string `koanf:"vision_model" validate:"required"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	Timeout   Duration `koanf:"timeout"`
	Rate      float64  `koanf:"rate" validate:"gte=0"`
	Burst     int      `koanf:"burst" validate:"gte=0"`
	UserAgent string   `koanf:"user_agent"`
}

// SplitterConfig configures text chunking.
type SplitterConfig struct {
	ChunkSize    int `koanf:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	URLsFile   string `koanf:"urls_file"`
	ImageStore string `koanf:"image_store" validate:"required"`
	Create     bool   `koanf:"create"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// TelemetryConfig configures OpenTelemetry export. It is off unless Enabled
// is set; a zero SampleRate means sample everything.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint" validate:"required_if=Enabled true"`
	Protocol        string   `koanf:"protocol" validate:"oneof=grpc http/protobuf"`
	Insecure        bool     `koanf:"insecure"`
	TLSSkipVerify   bool     `koanf:"tls_skip_verify"`
	SampleRate      float64  `koanf:"sample_rate" validate:"gte=0,lte=1"`
	DisableMetrics  bool     `koanf:"disable_metrics"`
	ExportInterval  Duration `koanf:"export_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ServerConfig configures the HTTP query API.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Fetch.Timeout.Duration() <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.PersistDir == "" {
		cfg.VectorStore.PersistDir = "~/.local/share/newsrag/vectorstore"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "the_batch"
	}
	if cfg.VectorStore.SearchType == "" {
		cfg.VectorStore.SearchType = "similarity"
	}
	if cfg.VectorStore.FetchK == 0 {
		cfg.VectorStore.FetchK = 20
	}
	if cfg.VectorStore.Lambda == 0 {
		cfg.VectorStore.Lambda = 0.5
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.Provider == "tei" && cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.VisionModel == "" {
		cfg.LLM.VisionModel = "llava"
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = Duration(10 * time.Second)
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "newsrag/1.0"
	}

	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 1500
	}

	if cfg.Ingest.ImageStore == "" {
		cfg.Ingest.ImageStore = "~/.local/share/newsrag/image_documents.json"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
		cfg.Telemetry.Insecure = true
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = Duration(5 * time.Second)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
}

// Load builds a configuration from environment variables only.
//
// Environment variables:
//   - NEWSRAG_VECTORSTORE_PROVIDER: chromem or qdrant (default: chromem)
//   - NEWSRAG_VECTORSTORE_PERSIST_DIR: chromem checkpoint directory
//   - NEWSRAG_VECTORSTORE_COLLECTION: collection name (default: the_batch)
//   - NEWSRAG_EMBEDDINGS_PROVIDER: fastembed or tei (default: fastembed)
//   - NEWSRAG_LLM_MODEL: answer model (default: llama3.2)
//   - NEWSRAG_FETCH_TIMEOUT: fetch timeout (default: 10s)
//   - NEWSRAG_SERVER_PORT: query API port (default: 9090)
//
// Use LoadWithFile for YAML support.
func Load() *Config {
	cfg := &Config{
		VectorStore: VectorStoreConfig{
			Provider:   getEnvString("NEWSRAG_VECTORSTORE_PROVIDER", ""),
			PersistDir: getEnvString("NEWSRAG_VECTORSTORE_PERSIST_DIR", ""),
			Collection: getEnvString("NEWSRAG_VECTORSTORE_COLLECTION", ""),
			Compress:   getEnvBool("NEWSRAG_VECTORSTORE_COMPRESS", false),
			SearchType: getEnvString("NEWSRAG_VECTORSTORE_SEARCH_TYPE", ""),
			VectorSize: getEnvInt("NEWSRAG_VECTORSTORE_VECTOR_SIZE", 0),
		},
		Embeddings: EmbeddingsConfig{
			Provider: getEnvString("NEWSRAG_EMBEDDINGS_PROVIDER", ""),
			Model:    getEnvString("NEWSRAG_EMBEDDINGS_MODEL", ""),
			BaseURL:  getEnvString("NEWSRAG_EMBEDDINGS_BASE_URL", ""),
		},
		LLM: LLMConfig{
			ServerURL: getEnvString("NEWSRAG_LLM_SERVER_URL", ""),
			Model:     getEnvString("NEWSRAG_LLM_MODEL", ""),
		},
		Fetch: FetchConfig{
			Timeout: Duration(getEnvDuration("NEWSRAG_FETCH_TIMEOUT", 0)),
		},
		Server: ServerConfig{
			Port: getEnvInt("NEWSRAG_SERVER_PORT", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:  getEnvBool("OTEL_ENABLE", false),
			Endpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
	}
	applyDefaults(cfg)
	return cfg
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
