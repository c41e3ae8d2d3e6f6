package embeddings

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// TextEncoder validates inputs before handing them to a Provider and checks
// the shape of what comes back.
type TextEncoder struct {
	provider Provider
}

// NewTextEncoder wraps p.
func NewTextEncoder(p Provider) (*TextEncoder, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	return &TextEncoder{provider: p}, nil
}

// Dimension returns the provider's vector length.
func (e *TextEncoder) Dimension() int {
	return e.provider.Dimension()
}

// EncodeText returns one vector per text, in order.
func (e *TextEncoder) EncodeText(ctx context.Context, texts []string) ([][]float32, error) {
	if texts == nil {
		return nil, fmt.Errorf("%w: texts is nil", ErrInvalidInput)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts is empty", ErrInvalidInput)
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: text %d is empty", ErrInvalidInput, i)
		}
	}

	vectors, err := e.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		if errors.Is(err, ErrEmbedding) || errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}

	dim := e.provider.Dimension()
	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d values, want %d", ErrEmbedding, i, len(v), dim)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("%w: vector %d is not finite", ErrEmbedding, i)
			}
		}
	}
	return vectors, nil
}

// ImageEncoder embeds decoded images.
type ImageEncoder interface {
	EncodeImages(ctx context.Context, images []image.Image) ([][]float32, error)
}

// ValidateImages rejects a nil or empty list and nil entries.
func ValidateImages(images []image.Image) error {
	if len(images) == 0 {
		return fmt.Errorf("%w: images is empty", ErrInvalidInput)
	}
	for i, img := range images {
		if img == nil {
			return fmt.Errorf("%w: image %d is nil", ErrInvalidInput, i)
		}
	}
	return nil
}

// Captioner describes an image in words.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// CaptionImageEncoder embeds images through their captions, so image and
// text vectors share one space.
type CaptionImageEncoder struct {
	captioner Captioner
	text      *TextEncoder
}

// NewCaptionImageEncoder combines a captioner with a text encoder.
func NewCaptionImageEncoder(c Captioner, text *TextEncoder) (*CaptionImageEncoder, error) {
	if c == nil || text == nil {
		return nil, fmt.Errorf("%w: captioner and text encoder are required", ErrInvalidConfig)
	}
	return &CaptionImageEncoder{captioner: c, text: text}, nil
}

// EncodeImages captions every image, then embeds the captions.
func (e *CaptionImageEncoder) EncodeImages(ctx context.Context, images []image.Image) ([][]float32, error) {
	if err := ValidateImages(images); err != nil {
		return nil, err
	}

	captions := make([]string, len(images))
	for i, img := range images {
		caption, err := e.captioner.Caption(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("%w: captioning image %d: %w", ErrEmbedding, i, err)
		}
		if caption == "" {
			return nil, fmt.Errorf("%w: image %d has an empty caption", ErrEmbedding, i)
		}
		captions[i] = caption
	}
	return e.text.EncodeText(ctx, captions)
}
