// Package http serves the news assistant over HTTP: questions in, answers
// with their sources and images out.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/rag"
)

// FallbackMessage replaces the detail of any failed query.
const FallbackMessage = "Something went wrong while generating answer. Please try again."

// MaxK bounds the documents a single request may retrieve.
const MaxK = 50

// Assistant answers questions. *rag.Orchestrator implements it.
type Assistant interface {
	Query(ctx context.Context, userQuery string, k int) (*rag.Response, error)
	State() rag.State
}

// Counter reports how many documents are stored. vectorstore.Store
// implements it.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host       string
	Port       int
	Version    string
	Collection string
	// Images holds the initial image payloads by document id. May be nil;
	// SetImages replaces them.
	Images map[string]*document.ImageDocument
}

// Server provides HTTP endpoints for the assistant.
type Server struct {
	echo      *echo.Echo
	assistant Assistant
	counter   Counter
	logger    *logging.Logger
	config    *Config
	images    atomic.Pointer[map[string]*document.ImageDocument]
}

// NewServer creates a new HTTP server. counter may be nil.
func NewServer(assistant Assistant, counter Counter, logger *logging.Logger, cfg *Config) (*Server, error) {
	if assistant == nil {
		return nil, fmt.Errorf("assistant cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:      e,
		assistant: assistant,
		counter:   counter,
		logger:    logger,
		config:    cfg,
	}
	s.SetImages(cfg.Images)
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.GET("/status", s.handleStatus)
}

// SetImages swaps the image payloads used for query responses. Safe to call
// while serving.
func (s *Server) SetImages(images map[string]*document.ImageDocument) {
	s.images.Store(&images)
}

func (s *Server) storedImages() map[string]*document.ImageDocument {
	return *s.images.Load()
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.K < 0 || req.K > MaxK {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("k must be between 0 and %d", MaxK))
	}

	queryID := c.Response().Header().Get(echo.HeaderXRequestID)
	if queryID == "" {
		queryID = uuid.NewString()
	}
	ctx := logging.WithQueryID(c.Request().Context(), queryID)

	resp, err := s.assistant.Query(ctx, req.Query, req.K)
	if err != nil {
		s.logger.Error(ctx, "query failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, rag.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, ErrorResponse{Message: FallbackMessage, QueryID: queryID})
	}

	return c.JSON(http.StatusOK, s.toQueryResponse(ctx, queryID, resp))
}

func (s *Server) toQueryResponse(ctx context.Context, queryID string, resp *rag.Response) QueryResponse {
	out := QueryResponse{
		QueryID: queryID,
		Answer:  resp.TextResponse(),
		Sources: resp.Sources(),
		Images:  []ImageResponse{},
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	for _, img := range imagestore.Attach(resp.Images(), s.storedImages()) {
		ir := ImageResponse{
			ID:        img.ID(),
			Caption:   img.Content(),
			SourceURL: img.SourceURL(),
			ImageURL:  img.ImageURL(),
		}
		if payload := img.Image(); payload != nil {
			encoded, err := imagestore.EncodeBase64(payload)
			if err != nil {
				s.logger.Warn(ctx, "failed to encode image", zap.String("id", img.ID()), zap.Error(err))
			} else {
				ir.ImageBase64 = encoded
			}
		}
		out.Images = append(out.Images, ir)
	}
	return out
}

func (s *Server) handleStatus(c echo.Context) error {
	docs := -1
	if s.counter != nil {
		n, err := s.counter.Count(c.Request().Context())
		if err != nil {
			s.logger.Warn(c.Request().Context(), "failed to count documents", zap.Error(err))
		} else {
			docs = n
		}
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:     "ok",
		Version:    s.config.Version,
		Collection: s.config.Collection,
		Documents:  docs,
		Images:     len(s.storedImages()),
		State:      s.assistant.State().String(),
	})
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
