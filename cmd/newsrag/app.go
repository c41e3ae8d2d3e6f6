package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/rag"
	"github.com/fyrsmithlabs/newsrag/internal/telemetry"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry

	provider embeddings.Provider
	store    vectorstore.Store
}

// newApp loads the environment and configuration, then starts logging and
// telemetry. The embedding provider and store are opened by openStore.
func newApp(ctx context.Context) (*app, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := expandPaths(cfg); err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := newLoggerConfig(cfg.Logging)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, reason := range tel.Health().Reasons {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	return &app{cfg: cfg, logger: logger, tel: tel}, nil
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func expandPaths(cfg *config.Config) error {
	for _, p := range []*string{&cfg.VectorStore.PersistDir, &cfg.Ingest.ImageStore, &cfg.Ingest.URLsFile, &cfg.Embeddings.CacheDir} {
		expanded, err := config.ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func newLoggerConfig(c config.LoggingConfig) (*logging.Config, error) {
	cfg := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	cfg.Level = level
	cfg.Format = c.Format
	cfg.Caller = c.Format == "json"
	return cfg, nil
}

// openStore creates the embedding provider and opens the configured store.
func (a *app) openStore() error {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: a.cfg.Embeddings.Provider,
		Model:    a.cfg.Embeddings.Model,
		BaseURL:  a.cfg.Embeddings.BaseURL,
		CacheDir: a.cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	store, err := vectorstore.NewStore(
		vectorstore.ConfigFrom(a.cfg, provider.Dimension()),
		embeddings.QueryFunc(provider),
		vectorstore.WithLogger(a.logger.Underlying().Named("vectorstore")),
	)
	if err != nil {
		_ = provider.Close()
		return err
	}

	a.provider = provider
	a.store = store
	return nil
}

// newOrchestrator builds the answer model and orchestrator over the open store.
func (a *app) newOrchestrator() (*rag.Orchestrator, error) {
	model, err := rag.NewOllamaModel(a.cfg.LLM.ServerURL, a.cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	return rag.NewOrchestrator(a.store, model, rag.DefaultPromptTemplate(), a.logger)
}

// Close releases the store, the provider and telemetry, then flushes logs.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(ctx, "failed to close vector store", zap.Error(err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn(ctx, "failed to close embedding provider", zap.Error(err))
		}
	}
	if err := a.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
