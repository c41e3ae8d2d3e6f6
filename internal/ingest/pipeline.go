package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/preprocess"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("newsrag.ingest")

var (
	// ErrInvalidConfig indicates a pipeline was built without a required part.
	ErrInvalidConfig = errors.New("invalid ingest config")

	// ErrInvalidInput indicates bad input such as an empty URL list.
	ErrInvalidInput = errors.New("invalid ingest input")
)

const (
	// DefaultImageField is the parsed tag holding article images.
	DefaultImageField = "images"

	// DefaultBatchSize is how many contents are embedded per call.
	DefaultBatchSize = 32
)

// Config wires a Pipeline.
type Config struct {
	Loader       *Loader
	Preprocessor *preprocess.Preprocessor
	Encoder      *embeddings.TextEncoder
	Store        vectorstore.Store

	// ImageStorePath is the image side file. Empty disables it.
	ImageStorePath string

	// ImageField names the parsed tag whose src attributes are loaded as
	// images. Default: DefaultImageField
	ImageField string

	// BatchSize bounds each embedding call. Default: DefaultBatchSize
	BatchSize int

	// SkipFailedPages logs and skips pages that fail to load or preprocess
	// instead of aborting the run.
	SkipFailedPages bool

	Logger *logging.Logger
}

// Report summarizes a Build run.
type Report struct {
	RunID          string
	Pages          int
	FailedPages    []string
	TextDocuments  int
	ImageDocuments int
	StoredCount    int
}

// Pipeline turns URLs into a populated vector store.
type Pipeline struct {
	cfg    Config
	logger *logging.Logger
}

// NewPipeline validates cfg and applies defaults.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Loader == nil || cfg.Preprocessor == nil || cfg.Encoder == nil || cfg.Store == nil {
		return nil, fmt.Errorf("%w: loader, preprocessor, encoder and store are required", ErrInvalidConfig)
	}
	if cfg.ImageField == "" {
		cfg.ImageField = DefaultImageField
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{cfg: cfg, logger: logger.Named("ingest")}, nil
}

// Build ingests urls and checkpoints the store.
func (p *Pipeline) Build(ctx context.Context, urls []string) (report *Report, err error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no urls to ingest", ErrInvalidInput)
	}

	report = &Report{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, report.RunID)

	ctx, span := tracer.Start(ctx, "ingest.Build")
	span.SetAttributes(attribute.String("run.id", report.RunID), attribute.Int("urls", len(urls)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("stored", report.StoredCount))
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}()
	p.logger.Info(ctx, "ingestion started", zap.Int("urls", len(urls)))

	var (
		docs   []document.Document
		images = make(map[string]*document.ImageDocument)
	)
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pageDocs, err := p.processPage(ctx, u)
		if err != nil {
			PagesTotal.WithLabelValues("error").Inc()
			if !p.cfg.SkipFailedPages {
				return report, err
			}
			p.logger.Warn(ctx, "skipping page", zap.String("url", u), zap.Error(err))
			report.FailedPages = append(report.FailedPages, u)
			continue
		}
		PagesTotal.WithLabelValues("success").Inc()
		report.Pages++

		for _, d := range pageDocs {
			if img, ok := d.(*document.ImageDocument); ok {
				images[img.ID()] = img
				report.ImageDocuments++
			} else {
				report.TextDocuments++
			}
		}
		docs = append(docs, pageDocs...)
	}
	DocumentsTotal.WithLabelValues(document.TypeText).Add(float64(report.TextDocuments))
	DocumentsTotal.WithLabelValues(document.TypeImage).Add(float64(report.ImageDocuments))

	if p.cfg.ImageStorePath != "" {
		if err := imagestore.Save(p.cfg.ImageStorePath, images); err != nil {
			return report, err
		}
		p.logger.Info(ctx, "saved image documents",
			zap.String("path", p.cfg.ImageStorePath),
			zap.Int("count", len(images)),
		)
	}

	if len(docs) == 0 {
		p.logger.Warn(ctx, "ingestion produced no documents")
		return report, nil
	}

	vectors, err := p.embed(ctx, docs)
	if err != nil {
		return report, err
	}
	if err := p.cfg.Store.AddDocuments(ctx, docs, vectors); err != nil {
		return report, err
	}
	if err := p.cfg.Store.Save(ctx); err != nil {
		return report, err
	}

	count, err := p.cfg.Store.Count(ctx)
	if err != nil {
		return report, err
	}
	report.StoredCount = count

	p.logger.Info(ctx, "ingestion finished",
		zap.Int("pages", report.Pages),
		zap.Int("failed_pages", len(report.FailedPages)),
		zap.Int("text_documents", report.TextDocuments),
		zap.Int("image_documents", report.ImageDocuments),
		zap.Int("stored", count),
	)
	return report, nil
}

func (p *Pipeline) processPage(ctx context.Context, u string) ([]document.Document, error) {
	data, err := p.cfg.Loader.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	return p.cfg.Preprocessor.Process(ctx, data.URL, data.All(), ImageURLs(data, p.cfg.ImageField))
}

// embed encodes document contents in batches.
func (p *Pipeline) embed(ctx context.Context, docs []document.Document) ([][]float32, error) {
	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(docs))

		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Content())
		}
		batch, err := p.cfg.Encoder.EncodeText(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding documents %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	p.logger.Debug(ctx, "embedded documents", zap.Int("count", len(vectors)))
	return vectors, nil
}
