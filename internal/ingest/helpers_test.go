package ingest

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode"

	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/preprocess"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

const issueHTML = `<!DOCTYPE html>
<html><body>
<h1>Solar Power Breaks Records</h1>
<time>June 3, 2024</time>
<span class="author">Grace Hopper</span>
<p>Solar panels improve efficiency every year.</p>
<figure><img src="/images/panel.png"><figcaption>A rooftop array.</figcaption></figure>
<img src="/images/missing.png">
</body></html>`

const chipsHTML = `<!DOCTYPE html>
<html><body>
<h1>GPU Prices Drop</h1>
<p>Accelerator prices fell sharply this quarter.</p>
</body></html>`

// newsServer serves two article pages and one image.
func newsServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	require.NoError(t, png.Encode(&buf, img))
	pngData := buf.Bytes()

	mux := http.NewServeMux()
	mux.HandleFunc("/issue-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(issueHTML))
	})
	mux.HandleFunc("/issue-2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chipsHTML))
	})
	mux.HandleFunc("/images/panel.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// hashProvider is a bag-of-words embedder.
type hashProvider struct{ dim int }

func (p hashProvider) embed(text string) []float32 {
	v := make([]float32, p.dim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(p.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / math.Sqrt(norm))
	}
	return v
}

func (p hashProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p hashProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

func (p hashProvider) Dimension() int { return p.dim }
func (p hashProvider) Close() error   { return nil }

type fixture struct {
	srv      *httptest.Server
	loader   *Loader
	pre      *preprocess.Preprocessor
	encoder  *embeddings.TextEncoder
	store    *vectorstore.ChromemStore
	provider hashProvider
	logger   *logging.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := newsServer(t)
	logger := logging.NewTestLogger()

	fetcher, err := fetch.NewHTTPFetcher(fetch.WithLogger(logger.Logger))
	require.NoError(t, err)
	loader, err := NewLoader(fetcher, parse.NewGoqueryParser(logger.Logger), parse.NewsArticleConfig(), logger.Logger)
	require.NoError(t, err)

	splitter, err := preprocess.NewRecursiveSplitter(preprocess.DefaultChunkSize, 0, nil)
	require.NoError(t, err)
	imgLoader, err := preprocess.NewHTTPImageLoader(fetcher, preprocess.WithImageLoaderLogger(logger.Logger))
	require.NoError(t, err)
	describer, err := preprocess.NewLLMDescriber(fake.NewFakeLLM([]string{"A solar panel array on a roof."}))
	require.NoError(t, err)
	pre, err := preprocess.NewPreprocessor(preprocess.NewSimpleTextExtractor(), splitter, imgLoader, describer, logger.Logger)
	require.NoError(t, err)

	provider := hashProvider{dim: 64}
	encoder, err := embeddings.NewTextEncoder(provider)
	require.NoError(t, err)

	store, err := vectorstore.NewChromemStore(vectorstore.Config{
		PersistDir: t.TempDir(),
		Collection: "ingest_test",
	}, embeddings.QueryFunc(provider), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &fixture{
		srv:      srv,
		loader:   loader,
		pre:      pre,
		encoder:  encoder,
		store:    store,
		provider: provider,
		logger:   logger,
	}
}
