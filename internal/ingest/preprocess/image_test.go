package preprocess

import (
	"bytes"
	"context"
	"image/gif"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHTTPImageLoader_RequiresFetcher(t *testing.T) {
	_, err := NewHTTPImageLoader(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHTTPImageLoader_Load(t *testing.T) {
	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, testImage(), nil))

	f := &stubFetcher{results: map[string]*fetch.Result{
		"https://img.example.com/a.png": {Success: true, Body: pngBytes(t)},
		"https://img.example.com/b.gif": {Success: true, Body: gifBuf.Bytes()},
	}}
	l, err := NewHTTPImageLoader(f)
	require.NoError(t, err)

	img, err := l.Load(context.Background(), "https://img.example.com/a.png")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, "https://img.example.com/a.png", img.URL)
	assert.Equal(t, 2, img.Image.Bounds().Dx())
	assert.Equal(t, "LoadedImage(url=https://img.example.com/a.png)", img.String())

	img, err = l.Load(context.Background(), "https://img.example.com/b.gif")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "gif", img.Format)
}

func TestHTTPImageLoader_HandledFailures(t *testing.T) {
	f := &stubFetcher{results: map[string]*fetch.Result{
		"https://img.example.com/broken.png": {Success: true, Body: []byte("not an image")},
	}}
	logger := logging.NewTestLogger()
	l, err := NewHTTPImageLoader(f, WithImageLoaderLogger(logger.Logger))
	require.NoError(t, err)

	for _, u := range []string{
		"data:image/png;base64,AAAA",
		"/relative/path.png",
		"https://img.example.com/missing.png",
		"https://img.example.com/broken.png",
	} {
		img, err := l.Load(context.Background(), u)
		assert.NoError(t, err, u)
		assert.Nil(t, img, u)
	}

	// Non-http urls never reach the fetcher.
	assert.Equal(t, []string{"https://img.example.com/missing.png", "https://img.example.com/broken.png"}, f.calls)
	logger.AssertLogged(t, zapcore.WarnLevel, "skipping image")
}

func TestHTTPImageLoader_StrictFailures(t *testing.T) {
	f := &stubFetcher{results: map[string]*fetch.Result{
		"https://img.example.com/broken.png": {Success: true, Body: []byte("not an image")},
	}}
	l, err := NewHTTPImageLoader(f, WithHandleErrors(false))
	require.NoError(t, err)

	for _, u := range []string{
		"ftp://img.example.com/a.png",
		"https://img.example.com/missing.png",
		"https://img.example.com/broken.png",
	} {
		img, err := l.Load(context.Background(), u)
		assert.ErrorIs(t, err, ErrImageLoading, u)
		assert.Nil(t, img, u)
	}

	_, err = l.Load(context.Background(), "https://img.example.com/missing.png")
	assert.ErrorIs(t, err, fetch.ErrHTTPStatus)
}
