package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a whole request including the body read.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "newsrag/1.0"

	// DefaultMaxBodySize caps how much of a response is read.
	DefaultMaxBodySize = 20 << 20
)

// HTTPFetcher fetches over net/http with an optional politeness limiter.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	limiter     *rate.Limiter
	logger      *logging.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *HTTPFetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient sets the underlying client. Its Timeout is overridden.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithMaxBodySize caps the number of body bytes read.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) { f.maxBodySize = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *HTTPFetcher) { f.logger = l }
}

// NewHTTPFetcher returns a fetcher. The timeout must be positive.
func NewHTTPFetcher(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", f.timeout)
	}
	if f.maxBodySize <= 0 {
		return nil, fmt.Errorf("max body size must be positive, got %d", f.maxBodySize)
	}

	client := &http.Client{}
	if f.client != nil {
		*client = *f.client
	}
	client.Timeout = f.timeout
	f.client = client
	f.logger = f.logger.Named("fetch")
	return f, nil
}

// Timeout returns the per-request timeout.
func (f *HTTPFetcher) Timeout() time.Duration {
	return f.timeout
}

func (f *HTTPFetcher) String() string {
	return fmt.Sprintf("HTTPFetcher(timeout=%s)", f.timeout)
}

// Fetch performs a GET request and reports the outcome.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error(ctx, "fetch panicked", zap.String("url", req.URL), zap.Any("panic", r))
			res = failure(req, 0, nil, ErrRequest, fmt.Errorf("panic: %v", r))
		}
	}()

	f.logger.Info(ctx, "fetching url", zap.String("url", req.URL))

	httpReq, err := f.newRequest(ctx, req)
	if err != nil {
		return f.fail(ctx, req, 0, nil, ErrRequest, err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			kind := ErrTimeout
			if errors.Is(err, context.Canceled) {
				kind = ErrRequest
			}
			return f.fail(ctx, req, 0, nil, kind, fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return f.fail(ctx, req, 0, nil, classify(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return f.fail(ctx, req, resp.StatusCode, resp.Header, ErrHTTPStatus,
			fmt.Errorf("%d %s for url %s", resp.StatusCode, http.StatusText(resp.StatusCode), req.URL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return f.fail(ctx, req, resp.StatusCode, resp.Header, classify(err), fmt.Errorf("reading body: %w", err))
	}

	f.logger.Info(ctx, "fetched url",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return &Result{
		Success:    true,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Data:       string(body),
		Body:       body,
		Headers:    resp.Header,
		Timestamp:  time.Now(),
		Meta:       req.Meta,
	}
}

func (f *HTTPFetcher) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return httpReq, nil
}

func (f *HTTPFetcher) fail(ctx context.Context, req Request, status int, headers http.Header, kind, cause error) *Result {
	res := failure(req, status, headers, kind, cause)
	f.logger.Error(ctx, "fetch failed",
		zap.String("url", req.URL),
		zap.Int("status", status),
		zap.Error(res.Err),
	)
	return res
}

// classify maps a transport error onto a failure kind.
func classify(err error) error {
	var (
		netErr      net.Error
		opErr       *net.OpError
		dnsErr      *net.DNSError
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case errors.As(err, &verifyErr), errors.As(err, &recordErr),
		errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return ErrTLS
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return ErrConnection
	default:
		return ErrRequest
	}
}
