package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func elements(t *testing.T, html string, selector string) []parse.Element {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	var out []parse.Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, parse.NewElement(s))
	})
	return out
}

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

// stubFetcher serves canned results by URL.
type stubFetcher struct {
	results map[string]*fetch.Result
	calls   []string
}

func (f *stubFetcher) Fetch(_ context.Context, req fetch.Request) *fetch.Result {
	f.calls = append(f.calls, req.URL)
	if res, ok := f.results[req.URL]; ok {
		return res
	}
	return &fetch.Result{URL: req.URL, StatusCode: 404, ErrorMessage: "not found", Err: fetch.ErrHTTPStatus}
}

// recordingModel answers with a fixed caption and keeps the messages it saw.
type recordingModel struct {
	caption  string
	err      error
	messages [][]llms.MessageContent
}

func (m *recordingModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = append(m.messages, msgs)
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.caption}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}
