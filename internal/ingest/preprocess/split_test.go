package preprocess

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecursiveSplitter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0},
		{name: "negative overlap", size: 10, overlap: -1},
		{name: "overlap equals size", size: 10, overlap: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecursiveSplitter(tt.size, tt.overlap, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRecursiveSplitter_SingleChunk(t *testing.T) {
	s, err := NewRecursiveSplitter(DefaultChunkSize, DefaultChunkOverlap, nil)
	require.NoError(t, err)
	assert.Equal(t, "RecursiveSplitter(chunk_size=1500, chunk_overlap=0)", s.String())

	docs, err := s.Split("Solar panels improve efficiency.", "https://news.example.com/a")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, document.HashID("Solar panels improve efficiency."), docs[0].ID())
	assert.Equal(t, "Solar panels improve efficiency.", docs[0].Content())
	assert.Equal(t, "https://news.example.com/a", docs[0].SourceURL())
}

func TestRecursiveSplitter_MergesWords(t *testing.T) {
	s, err := NewRecursiveSplitter(10, 0, nil)
	require.NoError(t, err)

	docs, err := s.Split("aaaa bbbb cccc dddd", "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "aaaa bbbb", docs[0].Content())
	assert.Equal(t, "cccc dddd", docs[1].Content())
	assert.NotEqual(t, docs[0].ID(), docs[1].ID())
}

func TestRecursiveSplitter_PrefersParagraphs(t *testing.T) {
	s, err := NewRecursiveSplitter(40, 0, nil)
	require.NoError(t, err)

	text := "First paragraph is here.\n\nSecond paragraph follows."
	docs, err := s.Split(text, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "First paragraph is here.", docs[0].Content())
	assert.Equal(t, "Second paragraph follows.", docs[1].Content())
}

func TestRecursiveSplitter_ChunksFit(t *testing.T) {
	s, err := NewRecursiveSplitter(50, 0, nil)
	require.NoError(t, err)

	text := strings.Repeat("word ", 200)
	docs, err := s.Split(text, "")
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, d := range docs {
		assert.LessOrEqual(t, len([]rune(d.Content())), 50)
	}
}

func TestRecursiveSplitter_Blank(t *testing.T) {
	s, err := NewRecursiveSplitter(10, 0, nil)
	require.NoError(t, err)

	docs, err := s.Split("  \n\n ", "u")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
