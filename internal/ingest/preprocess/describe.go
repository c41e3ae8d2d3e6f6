package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// DefaultCaptionPrompt asks a vision model for a short caption.
const DefaultCaptionPrompt = "Describe this image in one or two factual sentences. " +
	"Mention visible objects, people, charts and any legible text. Do not speculate."

// ImageDescriber turns a loaded image into an ImageDocument.
type ImageDescriber interface {
	Describe(ctx context.Context, img *LoadedImage) (*document.ImageDocument, error)
}

// LLMDescriber captions images with a multimodal langchaingo model.
type LLMDescriber struct {
	model  llms.Model
	prompt string
	opts   []llms.CallOption
	logger *logging.Logger
}

var _ ImageDescriber = (*LLMDescriber)(nil)

// DescriberOption configures an LLMDescriber.
type DescriberOption func(*LLMDescriber)

// WithCaptionPrompt replaces DefaultCaptionPrompt.
func WithCaptionPrompt(prompt string) DescriberOption {
	return func(d *LLMDescriber) { d.prompt = prompt }
}

// WithCallOptions passes options such as llms.WithTemperature to every call.
func WithCallOptions(opts ...llms.CallOption) DescriberOption {
	return func(d *LLMDescriber) { d.opts = append(d.opts, opts...) }
}

// WithDescriberLogger sets the logger.
func WithDescriberLogger(logger *logging.Logger) DescriberOption {
	return func(d *LLMDescriber) { d.logger = logger }
}

// NewLLMDescriber returns a describer backed by model.
func NewLLMDescriber(model llms.Model, opts ...DescriberOption) (*LLMDescriber, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	d := &LLMDescriber{model: model, prompt: DefaultCaptionPrompt, logger: logging.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	if strings.TrimSpace(d.prompt) == "" {
		return nil, fmt.Errorf("%w: caption prompt is empty", ErrInvalidConfig)
	}
	d.logger = d.logger.Named("describer")
	return d, nil
}

// Caption returns a caption for img.
func (d *LLMDescriber) Caption(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("%w: image is nil", ErrImageDescription)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: encoding image: %w", ErrImageDescription, err)
	}

	msgs := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart("image/png", buf.Bytes()),
			llms.TextContent{Text: d.prompt},
		},
	}}
	resp, err := d.model.GenerateContent(ctx, msgs, d.opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageDescription, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrImageDescription)
	}
	caption := strings.TrimSpace(resp.Choices[0].Content)
	if caption == "" {
		return "", fmt.Errorf("%w: model returned an empty caption", ErrImageDescription)
	}
	return caption, nil
}

// Describe captions img. The document id is salted so two images with the
// same caption stay distinct.
func (d *LLMDescriber) Describe(ctx context.Context, img *LoadedImage) (*document.ImageDocument, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: image is nil", ErrImageDescription)
	}

	d.logger.Info(ctx, "describing image", zap.String("url", img.URL))
	caption, err := d.Caption(ctx, img.Image)
	if err != nil {
		d.logger.Error(ctx, "describing image failed", zap.String("url", img.URL), zap.Error(err))
		return nil, fmt.Errorf("describing %s: %w", img.URL, err)
	}

	doc, err := document.NewImageDocument(document.SaltedID(caption), caption, img.source(), img.URL, img.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDescription, err)
	}
	d.logger.Debug(ctx, "described image", zap.String("url", img.URL), zap.String("caption", caption))
	return doc, nil
}
