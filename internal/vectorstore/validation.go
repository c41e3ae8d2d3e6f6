package vectorstore

import (
	"fmt"
	"math"

	"github.com/fyrsmithlabs/newsrag/internal/document"
)

// row is one validated (document, embedding) pair ready for a backend.
type row struct {
	record    document.Record
	embedding []float32
}

// prepareRows checks an AddDocuments batch and projects it into rows.
//
// A repeated id keeps the last occurrence, at the position of the first.
func prepareRows(docs []document.Document, embeddings [][]float32, reg *document.Registry) ([]row, error) {
	if len(docs) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d documents but %d embeddings", ErrInvalidInput, len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil, nil
	}

	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("%w: embedding %d is empty", ErrInvalidInput, i)
		}
		if len(e) != dim {
			return nil, fmt.Errorf("%w: embedding %d has %d values, embedding 0 has %d", ErrInvalidInput, i, len(e), dim)
		}
		for _, x := range e {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("%w: embedding %d is not finite", ErrInvalidInput, i)
			}
		}
	}

	rows := make([]row, 0, len(docs))
	index := make(map[string]int, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("%w: document %d is nil", ErrInvalidInput, i)
		}
		if !reg.Supports(doc) {
			return nil, fmt.Errorf("%w: document %d has unregistered type %q (%T)", ErrInvalidInput, i, doc.Type(), doc)
		}
		if doc.ID() == "" {
			return nil, fmt.Errorf("%w: document %d has an empty id", ErrInvalidInput, i)
		}

		r := row{record: document.RecordOf(doc), embedding: append([]float32(nil), embeddings[i]...)}
		if r.record.Metadata == nil {
			r.record.Metadata = map[string]string{}
		}
		if _, ok := r.record.Metadata[document.KeyType]; !ok {
			r.record.Metadata[document.KeyType] = doc.Type()
		}

		if j, ok := index[r.record.ID]; ok {
			rows[j] = r
			continue
		}
		index[r.record.ID] = len(rows)
		rows = append(rows, r)
	}
	return rows, nil
}

func validateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	return nil
}
