// Package fetch downloads web pages for ingestion.
//
// A Fetcher never returns a Go error or panics: every outcome, including
// failures, is reported through a Result so a batch of URLs can continue past
// a bad one.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Failure kinds carried in Result.Err.
var (
	ErrTimeout    = errors.New("fetch timed out")
	ErrConnection = errors.New("connection error")
	ErrTLS        = errors.New("TLS error")
	ErrHTTPStatus = errors.New("HTTP error")
	ErrRequest    = errors.New("request error")
)

// Request describes one GET request.
type Request struct {
	URL     string
	Params  map[string]string
	Headers map[string]string
	Cookies map[string]string
	// Meta is copied to the Result untouched.
	Meta map[string]any
}

// Result is the outcome of a fetch.
type Result struct {
	Success    bool
	URL        string
	StatusCode int
	// Data is the response body as text.
	Data    string
	Body    []byte
	Headers http.Header

	ErrorMessage string
	// Err wraps one of the failure kinds when Success is false.
	Err error

	Timestamp time.Time
	Meta      map[string]any
}

func (r *Result) String() string {
	if r.Success {
		return fmt.Sprintf("Result(success=true, url=%s, status=%d, bytes=%d)", r.URL, r.StatusCode, len(r.Body))
	}
	return fmt.Sprintf("Result(success=false, url=%s, status=%d, error=%q)", r.URL, r.StatusCode, r.ErrorMessage)
}

// Fetcher downloads a web resource.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) *Result
}

func failure(req Request, status int, headers http.Header, kind error, cause error) *Result {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &Result{
		URL:          req.URL,
		StatusCode:   status,
		Headers:      headers,
		ErrorMessage: err.Error(),
		Err:          err,
		Timestamp:    time.Now(),
		Meta:         req.Meta,
	}
}
