package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/embeddings"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/fyrsmithlabs/newsrag/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func (f *fixture) pipeline(t *testing.T, mutate func(*Config)) (*Pipeline, string) {
	t.Helper()
	imagePath := filepath.Join(t.TempDir(), "images.json")
	cfg := Config{
		Loader:         f.loader,
		Preprocessor:   f.pre,
		Encoder:        f.encoder,
		Store:          f.store,
		ImageStorePath: imagePath,
		Logger:         f.logger.Logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	return p, imagePath
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPipeline_Build(t *testing.T) {
	f := newFixture(t)
	p, imagePath := f.pipeline(t, nil)
	ctx := context.Background()

	pagesOK := PagesTotal.WithLabelValues("success")
	before := testutil.ToFloat64(pagesOK)

	report, err := p.Build(ctx, []string{f.srv.URL + "/issue-1", f.srv.URL + "/issue-2"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Pages)
	assert.Empty(t, report.FailedPages)
	assert.Equal(t, 2, report.TextDocuments)
	assert.Equal(t, 1, report.ImageDocuments)
	assert.Equal(t, 3, report.StoredCount)
	assert.Equal(t, before+2, testutil.ToFloat64(pagesOK))

	results, err := f.store.SimilaritySearch(ctx, "solar panels improve efficiency", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content(), "Solar panels improve efficiency")
	assert.Equal(t, f.srv.URL+"/issue-1", results[0].(*document.TextDocument).SourceURL())

	images, err := imagestore.Load(imagePath)
	require.NoError(t, err)
	require.Len(t, images, 1)
	for _, img := range images {
		assert.Equal(t, "A solar panel array on a roof.", img.Content())
		assert.Equal(t, f.srv.URL+"/issue-1", img.SourceURL())
		assert.Equal(t, f.srv.URL+"/images/panel.png", img.ImageURL())
		require.NotNil(t, img.Image())
		assert.Equal(t, 4, img.Image().Bounds().Dx())
	}

	f.logger.AssertLogged(t, zapcore.InfoLevel, "ingestion finished")
	f.logger.AssertLogged(t, zapcore.WarnLevel, "skipping image")
}

func TestPipeline_BuildCheckpoints(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(t, func(c *Config) { c.BatchSize = 1 })
	ctx := context.Background()

	_, err := p.Build(ctx, []string{f.srv.URL + "/issue-1", f.srv.URL + "/issue-2"})
	require.NoError(t, err)

	reopened, err := vectorstore.NewChromemStore(vectorstore.Config{
		PersistDir: f.store.PersistDir(),
		Collection: "ingest_test",
	}, embeddings.QueryFunc(f.provider), nil, nil)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPipeline_FailedPageAborts(t *testing.T) {
	f := newFixture(t)
	p, imagePath := f.pipeline(t, nil)

	_, err := p.Build(context.Background(), []string{f.srv.URL + "/issue-1", f.srv.URL + "/gone"})
	assert.ErrorIs(t, err, parse.ErrFetchUnsuccessful)
	assert.ErrorIs(t, err, fetch.ErrHTTPStatus)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoFileExists(t, imagePath)
}

func TestPipeline_SkipFailedPages(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(t, func(c *Config) { c.SkipFailedPages = true })

	report, err := p.Build(context.Background(), []string{f.srv.URL + "/gone", f.srv.URL + "/issue-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/gone"}, report.FailedPages)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.TextDocuments)
	assert.Zero(t, report.ImageDocuments)
	assert.Equal(t, 1, report.StoredCount)
}

func TestPipeline_NoDocuments(t *testing.T) {
	f := newFixture(t)
	p, imagePath := f.pipeline(t, func(c *Config) { c.SkipFailedPages = true })

	report, err := p.Build(context.Background(), []string{f.srv.URL + "/gone"})
	require.NoError(t, err)
	assert.Zero(t, report.StoredCount)
	assert.FileExists(t, imagePath)
	f.logger.AssertLogged(t, zapcore.WarnLevel, "no documents")
}

func TestPipeline_EmptyURLs(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(t, nil)

	_, err := p.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPipeline_Canceled(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Build(ctx, []string{f.srv.URL + "/issue-1"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipeline_EmbeddingError(t *testing.T) {
	f := newFixture(t)
	failing, err := embeddings.NewTextEncoder(failingProvider{})
	require.NoError(t, err)
	p, _ := f.pipeline(t, func(c *Config) { c.Encoder = failing })

	_, err = p.Build(context.Background(), []string{f.srv.URL + "/issue-2"})
	assert.ErrorIs(t, err, embeddings.ErrEmbedding)
	assert.True(t, strings.Contains(err.Error(), "embedding documents 0-0"))
}

type failingProvider struct{ hashProvider }

func (failingProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model not loaded")
}
