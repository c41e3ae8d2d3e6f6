package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/http"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
}

// serveCmd exposes the assistant over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `Serve the query API over HTTP until interrupted.

Endpoints:
  POST /api/v1/query   {"query": "...", "k": 5}
  GET  /api/v1/status
  GET  /health
  GET  /metrics        Prometheus metrics

The image document file is watched; a re-ingest is picked up without a
restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.openStore(); err != nil {
		return err
	}
	orch, err := a.newOrchestrator()
	if err != nil {
		return err
	}

	cfg := &http.Config{
		Host:       a.cfg.Server.Host,
		Port:       a.cfg.Server.Port,
		Version:    version,
		Collection: a.cfg.VectorStore.Collection,
		Images:     loadImageStore(ctx, a.cfg.Ingest.ImageStore, a.logger),
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	server, err := http.NewServer(orch, a.store, a.logger, cfg)
	if err != nil {
		return err
	}

	if path := a.cfg.Ingest.ImageStore; path != "" {
		watcher, err := imagestore.NewWatcher(path,
			func(images map[string]*document.ImageDocument) {
				server.SetImages(images)
				a.logger.Info(ctx, "reloaded image documents", zap.Int("count", len(images)))
			},
			func(err error) {
				a.logger.Warn(ctx, "image document watcher", zap.Error(err))
			},
		)
		if err != nil {
			a.logger.Warn(ctx, "image documents will not be reloaded", zap.Error(err))
		} else {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	return server.Start(ctx)
}
