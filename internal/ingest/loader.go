package ingest

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"go.uber.org/zap"
)

// Loader fetches a page and parses it with a fixed config.
type Loader struct {
	fetcher fetch.Fetcher
	parser  parse.Parser
	config  parse.ParserConfig
	logger  *logging.Logger
}

// NewLoader returns a Loader. A nil logger disables logging.
func NewLoader(f fetch.Fetcher, p parse.Parser, cfg parse.ParserConfig, logger *logging.Logger) (*Loader, error) {
	if f == nil || p == nil {
		return nil, fmt.Errorf("%w: fetcher and parser are required", ErrInvalidConfig)
	}
	if cfg.Len() == 0 {
		return nil, fmt.Errorf("%w: parser config is empty", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{fetcher: f, parser: p, config: cfg, logger: logger.Named("loader")}, nil
}

func (l *Loader) String() string {
	return fmt.Sprintf("Loader(fetcher=%v, parser=%v, config=%v)", l.fetcher, l.parser, l.config)
}

// Load fetches url and returns the parsed elements.
func (l *Loader) Load(ctx context.Context, url string) (*parse.ParsedData, error) {
	l.logger.Debug(ctx, "loading page", zap.String("url", url))

	res := l.fetcher.Fetch(ctx, fetch.Request{URL: url})
	if !res.Success {
		return nil, fmt.Errorf("loading %s: %w: %w", url, parse.ErrFetchUnsuccessful, res.Err)
	}

	data, err := l.parser.Parse(ctx, res, l.config)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	l.logger.Info(ctx, "loaded page", zap.String("url", url), zap.Strings("tags", data.Names()))
	return data, nil
}
