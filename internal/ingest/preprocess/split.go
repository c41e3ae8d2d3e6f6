package preprocess

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 0
)

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into TextDocuments.
type Splitter interface {
	Split(text, sourceURL string) ([]*document.TextDocument, error)
}

// RecursiveSplitter splits on progressively finer separators until chunks
// fit ChunkSize runes.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	splitter     textsplitter.RecursiveCharacter
}

var _ Splitter = (*RecursiveSplitter)(nil)

// NewRecursiveSplitter validates sizes and builds the splitter. Nil
// separators mean DefaultSeparators.
func NewRecursiveSplitter(chunkSize, chunkOverlap int, separators []string) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfig, chunkSize, chunkOverlap)
	}
	if separators == nil {
		separators = DefaultSeparators
	}
	separators = append([]string(nil), separators...)

	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
		),
	}, nil
}

func (s *RecursiveSplitter) String() string {
	return fmt.Sprintf("RecursiveSplitter(chunk_size=%d, chunk_overlap=%d)", s.chunkSize, s.chunkOverlap)
}

// Split returns one document per chunk. Chunk ids are content hashes, so a
// repeated chunk maps to the same id.
func (s *RecursiveSplitter) Split(text, sourceURL string) ([]*document.TextDocument, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSplitting, err)
	}

	docs := make([]*document.TextDocument, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		doc, err := document.NewTextDocument(document.HashID(chunk), chunk, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSplitting, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
