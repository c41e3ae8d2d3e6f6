package preprocess

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/fyrsmithlabs/newsrag/internal/ingest/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extractHTML = `<html><body>
<div id="a"><p>Hello <b>world</b></p><script>track()</script><!-- hidden --></div>
<p id="b">   Second   </p>
</body></html>`

func TestSimpleTextExtractor_Extract(t *testing.T) {
	elems := elements(t, extractHTML, "#a, #b")
	require.Len(t, elems, 2)

	text, err := NewSimpleTextExtractor().Extract(elems)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond", text)
}

func TestSimpleTextExtractor_NoStrip(t *testing.T) {
	elems := elements(t, `<p>Hello <b>world</b></p>`, "p")

	text, err := SimpleTextExtractor{Separator: "|", Join: "\n"}.Extract(elems)
	require.NoError(t, err)
	assert.Equal(t, "Hello |world", text)
}

func TestSimpleTextExtractor_Empty(t *testing.T) {
	text, err := NewSimpleTextExtractor().Extract(nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSimpleTextExtractor_EmptyElement(t *testing.T) {
	_, err := NewSimpleTextExtractor().Extract([]parse.Element{parse.NewElement(&goquery.Selection{})})
	assert.ErrorIs(t, err, ErrTextExtraction)

	_, err = NewSimpleTextExtractor().Extract([]parse.Element{{}})
	assert.ErrorIs(t, err, ErrTextExtraction)
}
