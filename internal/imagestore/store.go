// Package imagestore persists ImageDocuments, including their pixels, to a
// JSON side file. Vector stores keep only captions and metadata, so images
// are looked up here by document id.
package imagestore

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/fyrsmithlabs/newsrag/internal/document"
)

var (
	// ErrSaving indicates the side file could not be written.
	ErrSaving = errors.New("saving image documents failed")

	// ErrLoading indicates the side file could not be read or decoded.
	ErrLoading = errors.New("loading image documents failed")
)

// entry is the on-disk form of one ImageDocument. Metadata fields are kept
// flat next to the payload.
type entry struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Content     string  `json:"content"`
	SourceURL   string  `json:"source_url"`
	ImageURL    string  `json:"image_url"`
	ImageBase64 *string `json:"image_base64"`
}

// Save writes docs to path as a JSON object keyed by document id. Images are
// PNG encoded; a nil image is stored as null. The file is replaced
// atomically.
func Save(path string, docs map[string]*document.ImageDocument) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrSaving)
	}

	out := make(map[string]entry, len(docs))
	for id, doc := range docs {
		if doc == nil {
			return fmt.Errorf("%w: document %q is nil", ErrSaving, id)
		}
		e, err := encode(doc)
		if err != nil {
			return fmt.Errorf("%w: document %q: %w", ErrSaving, id, err)
		}
		out[id] = e
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaving, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrSaving, err)
	}
	return nil
}

// Load reads a file written by Save.
func Load(path string) (map[string]*document.ImageDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoading, err)
	}

	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoading, path, err)
	}

	docs := make(map[string]*document.ImageDocument, len(raw))
	for id, e := range raw {
		doc, err := decode(e)
		if err != nil {
			return nil, fmt.Errorf("%w: document %q: %w", ErrLoading, id, err)
		}
		docs[id] = doc
	}
	return docs, nil
}

// Attach returns copies of docs carrying the stored image for each id.
// Documents without a stored image are returned unchanged.
func Attach(docs []*document.ImageDocument, stored map[string]*document.ImageDocument) []*document.ImageDocument {
	out := make([]*document.ImageDocument, len(docs))
	for i, d := range docs {
		out[i] = d
		if s, ok := stored[d.ID()]; ok && s.Image() != nil {
			out[i] = d.WithImage(s.Image())
		}
	}
	return out
}

// IDs returns the sorted ids in docs.
func IDs(docs map[string]*document.ImageDocument) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func encode(doc *document.ImageDocument) (entry, error) {
	e := entry{
		ID:        doc.ID(),
		Type:      doc.Type(),
		Content:   doc.Content(),
		SourceURL: doc.SourceURL(),
		ImageURL:  doc.ImageURL(),
	}
	if img := doc.Image(); img != nil {
		s, err := EncodeBase64(img)
		if err != nil {
			return entry{}, err
		}
		e.ImageBase64 = &s
	}
	return e, nil
}

// EncodeBase64 returns img as base64 (standard encoding) PNG bytes, the form
// used in the side file.
func EncodeBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decode(e entry) (*document.ImageDocument, error) {
	if e.Type != "" && e.Type != document.TypeImage {
		return nil, fmt.Errorf("unexpected type %q", e.Type)
	}

	var img image.Image
	if e.ImageBase64 != nil {
		raw, err := base64.StdEncoding.DecodeString(*e.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding base64: %w", err)
		}
		img, err = png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding png: %w", err)
		}
	}
	return document.NewImageDocument(e.ID, e.Content, e.SourceURL, e.ImageURL, img)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
