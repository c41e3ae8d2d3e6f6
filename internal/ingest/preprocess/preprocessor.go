package preprocess

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"go.uber.org/zap"
)

// Preprocessor runs extraction, splitting, image loading and captioning for
// one page.
type Preprocessor struct {
	extractor TextExtractor
	splitter  Splitter
	loader    ImageLoader
	describer ImageDescriber
	logger    *logging.Logger
}

// NewPreprocessor wires the steps together. A nil loader or describer
// disables image processing.
func NewPreprocessor(extractor TextExtractor, splitter Splitter, loader ImageLoader, describer ImageDescriber, logger *logging.Logger) (*Preprocessor, error) {
	if extractor == nil || splitter == nil {
		return nil, fmt.Errorf("%w: extractor and splitter are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Preprocessor{
		extractor: extractor,
		splitter:  splitter,
		loader:    loader,
		describer: describer,
		logger:    logger.Named("preprocess"),
	}, nil
}

// ImagesEnabled reports whether Process captions images.
func (p *Preprocessor) ImagesEnabled() bool {
	return p.loader != nil && p.describer != nil
}

// Process returns the page's text chunks followed by its image documents.
// Images the loader skips are left out.
func (p *Preprocessor) Process(ctx context.Context, sourceURL string, elements []parse.Element, imageURLs []string) ([]document.Document, error) {
	p.logger.Info(ctx, "extracting text", zap.String("source_url", sourceURL), zap.Int("elements", len(elements)))
	text, err := p.extractor.Extract(elements)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", sourceURL, err)
	}

	chunks, err := p.splitter.Split(text, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("splitting text from %s: %w", sourceURL, err)
	}

	docs := make([]document.Document, 0, len(chunks)+len(imageURLs))
	for _, c := range chunks {
		docs = append(docs, c)
	}

	var described int
	if p.ImagesEnabled() {
		for _, u := range imageURLs {
			img, err := p.loader.Load(ctx, u)
			if err != nil {
				return nil, err
			}
			if img == nil {
				continue
			}
			if img.SourceURL == "" {
				img.SourceURL = sourceURL
			}
			doc, err := p.describer.Describe(ctx, img)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			described++
		}
	}

	p.logger.Info(ctx, "preprocessed page",
		zap.String("source_url", sourceURL),
		zap.Int("chunks", len(chunks)),
		zap.Int("images", described),
		zap.Int("image_urls", len(imageURLs)),
	)
	return docs, nil
}
