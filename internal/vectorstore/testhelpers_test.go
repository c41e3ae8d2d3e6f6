package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/stretchr/testify/require"
)

// testVocabulary gives every known word its own dimension, so similarity is
// plain word overlap. Unknown words are ignored.
var testVocabulary = []string{
	"solar", "energy", "panels", "roof", "wind", "power", "sunlight", "electricity",
	"stock", "market", "fell", "cats", "pets", "popular", "ai", "model", "chips",
	"robots", "news", "weekly", "version", "one", "two", "talk",
}

const testDim = 24

// wordEmbedder is a deterministic bag-of-words embedder.
type wordEmbedder struct {
	dim   int
	err   error
	calls int
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{dim: testDim}
}

func (e *wordEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?")
		for i, known := range testVocabulary {
			if w == known && i < e.dim {
				v[i]++
			}
		}
	}
	// Text without known words still needs a non-zero vector.
	if allZero(v) {
		v[e.dim-1] = 1
	}
	return v
}

func (e *wordEmbedder) embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *wordEmbedder) embedAll(docs []document.Document) [][]float32 {
	out := make([][]float32, len(docs))
	for i, d := range docs {
		out[i] = e.vector(d.Content())
	}
	return out
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func textDoc(t *testing.T, id, content string) *document.TextDocument {
	t.Helper()
	d, err := document.NewTextDocument(id, content, "https://example.com/"+id)
	require.NoError(t, err)
	return d
}

func imageDoc(t *testing.T, id, caption string) *document.ImageDocument {
	t.Helper()
	d, err := document.NewImageDocument(id, caption, "https://example.com/article", "https://example.com/"+id+".png", nil)
	require.NoError(t, err)
	return d
}

// videoDocument is a custom document type.
type videoDocument struct {
	id       string
	content  string
	duration string
}

func (d *videoDocument) ID() string      { return d.id }
func (d *videoDocument) Type() string    { return "video" }
func (d *videoDocument) Content() string { return d.content }
func (d *videoDocument) Metadata() map[string]string {
	return map[string]string{
		document.KeyID:      d.id,
		document.KeyType:    "video",
		document.KeyContent: d.content,
		"duration":          d.duration,
	}
}

func videoConverter(rec document.Record) (document.Document, error) {
	if rec.Metadata["duration"] == "" {
		return nil, fmt.Errorf("video %s has no duration", rec.ID)
	}
	return &videoDocument{id: rec.Metadata[document.KeyID], content: rec.Content, duration: rec.Metadata["duration"]}, nil
}

func ids(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID()
	}
	return out
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr), "expected *OpError, got %T", err)
}
