package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// LoadedImage is a decoded image and where it came from.
type LoadedImage struct {
	// URL is the image address.
	URL string
	// SourceURL is the page the image appeared on. Empty means URL.
	SourceURL string
	// Format is the decoder name, e.g. "png" or "webp".
	Format string
	Image  image.Image
}

func (l *LoadedImage) String() string {
	return fmt.Sprintf("LoadedImage(url=%s)", l.URL)
}

func (l *LoadedImage) source() string {
	if l.SourceURL != "" {
		return l.SourceURL
	}
	return l.URL
}

// ImageLoader downloads and decodes images.
type ImageLoader interface {
	// Load returns nil, nil when the image was skipped.
	Load(ctx context.Context, url string) (*LoadedImage, error)
}

// HTTPImageLoader loads images through a fetch.Fetcher.
type HTTPImageLoader struct {
	fetcher      fetch.Fetcher
	handleErrors bool
	logger       *logging.Logger
}

var _ ImageLoader = (*HTTPImageLoader)(nil)

// ImageLoaderOption configures an HTTPImageLoader.
type ImageLoaderOption func(*HTTPImageLoader)

// WithHandleErrors controls whether failures skip the image (true, the
// default) or return ErrImageLoading.
func WithHandleErrors(handle bool) ImageLoaderOption {
	return func(l *HTTPImageLoader) { l.handleErrors = handle }
}

// WithImageLoaderLogger sets the logger.
func WithImageLoaderLogger(logger *logging.Logger) ImageLoaderOption {
	return func(l *HTTPImageLoader) { l.logger = logger }
}

// NewHTTPImageLoader returns a loader that fetches with f.
func NewHTTPImageLoader(f fetch.Fetcher, opts ...ImageLoaderOption) (*HTTPImageLoader, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidConfig)
	}
	l := &HTTPImageLoader{fetcher: f, handleErrors: true, logger: logging.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("images")
	return l, nil
}

// Load fetches and decodes the image at url.
func (l *HTTPImageLoader) Load(ctx context.Context, url string) (*LoadedImage, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return l.fail(ctx, url, fmt.Errorf("url must start with http or https"))
	}

	res := l.fetcher.Fetch(ctx, fetch.Request{URL: url})
	if !res.Success {
		return l.fail(ctx, url, fmt.Errorf("fetching image: %w", res.Err))
	}

	img, format, err := image.Decode(bytes.NewReader(res.Body))
	if err != nil {
		return l.fail(ctx, url, fmt.Errorf("decoding image: %w", err))
	}

	l.logger.Debug(ctx, "loaded image",
		zap.String("url", url),
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return &LoadedImage{URL: url, Format: format, Image: img}, nil
}

func (l *HTTPImageLoader) fail(ctx context.Context, url string, err error) (*LoadedImage, error) {
	if l.handleErrors {
		l.logger.Warn(ctx, "skipping image", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrImageLoading, url, err)
}
