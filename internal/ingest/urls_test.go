package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/ingest/fetch"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadURLs(t *testing.T) {
	path := writeFile(t, `# The Batch issues
https://news.example.com/issue-1

  https://news.example.com/issue-2  
https://news.example.com/issue-1
`)

	urls, err := ReadURLs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://news.example.com/issue-1",
		"https://news.example.com/issue-2",
	}, urls)
}

func TestReadURLs_Errors(t *testing.T) {
	_, err := ReadURLs(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	for _, body := range []string{"news.example.com/issue-1\n", "ftp://news.example.com/a\n", "https://\n"} {
		_, err := ReadURLs(writeFile(t, body))
		assert.ErrorIs(t, err, ErrInvalidInput, body)
	}
}

func TestImageURLs(t *testing.T) {
	html := `<html><body>
<img src="/images/a.png">
<img src="b.jpg">
<img src="https://cdn.example.com/c.webp">
<img src="data:image/gif;base64,R0lGOD" data-src="/images/lazy.png">
<img>
<img src="/images/a.png">
</body></html>`
	res := &fetch.Result{Success: true, URL: "https://news.example.com/issues/1", Data: html}
	cfg, err := parse.NewParserConfig([]string{"images"}, []parse.Tag{parse.NewTag("img", nil)})
	require.NoError(t, err)
	data, err := parse.NewGoqueryParser(nil).Parse(context.Background(), res, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://news.example.com/images/a.png",
		"https://news.example.com/issues/b.jpg",
		"https://cdn.example.com/c.webp",
		"https://news.example.com/images/lazy.png",
	}, ImageURLs(data, "images"))

	assert.Empty(t, ImageURLs(data, "pictures"))
}
