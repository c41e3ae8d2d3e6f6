// Package document defines the typed records that flow through ingestion,
// storage and retrieval.
//
// A Document has a stable identity, a textual payload and a flat metadata
// projection. The projection is what the vector store persists next to the
// embedding; a converter registered in a Registry turns it back into a typed
// Document at query time.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Type tags of the built-in variants.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Metadata keys of the persisted projection.
const (
	KeyID        = "id"
	KeyType      = "type"
	KeyContent   = "content"
	KeySourceURL = "source_url"
	KeyImageURL  = "image_url"
)

// ErrValidation indicates a document could not be constructed from its fields.
var ErrValidation = errors.New("document validation failed")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is the capability every stored record exposes.
type Document interface {
	// ID is the stable identifier. It never changes after construction.
	ID() string
	// Type is the variant tag used to route reconstruction.
	Type() string
	// Content is the textual payload that gets embedded.
	Content() string
	// Metadata returns a fresh copy of the persisted projection.
	Metadata() map[string]string
}

// Record is the persisted projection of a Document as a store returns it.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// RecordOf projects doc into a Record.
func RecordOf(doc Document) Record {
	return Record{
		ID:       doc.ID(),
		Content:  doc.Content(),
		Metadata: doc.Metadata(),
	}
}

// HashID derives a deterministic identifier from content and optional extra parts.
func HashID(content string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(content))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SaltedID derives an identifier from content plus a random salt, so equal
// content can be stored as distinct entries.
func SaltedID(content string) string {
	return HashID(content, uuid.NewString())
}

type textFields struct {
	ID        string `validate:"required"`
	Content   string
	SourceURL string
}

// TextDocument is a chunk of article text.
type TextDocument struct {
	f textFields
}

// NewTextDocument validates its fields and returns a TextDocument.
// An empty sourceURL means the source is unknown.
func NewTextDocument(id, content, sourceURL string) (*TextDocument, error) {
	f := textFields{ID: id, Content: content, SourceURL: sourceURL}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: text document: %v", ErrValidation, err)
	}
	return &TextDocument{f: f}, nil
}

func (d *TextDocument) ID() string        { return d.f.ID }
func (d *TextDocument) Type() string      { return TypeText }
func (d *TextDocument) Content() string   { return d.f.Content }
func (d *TextDocument) SourceURL() string { return d.f.SourceURL }

func (d *TextDocument) Metadata() map[string]string {
	return map[string]string{
		KeyID:        d.f.ID,
		KeyType:      TypeText,
		KeyContent:   d.f.Content,
		KeySourceURL: d.f.SourceURL,
	}
}

func (d *TextDocument) String() string {
	return fmt.Sprintf("TextDocument(id=%s, source_url=%s)", d.f.ID, d.f.SourceURL)
}

type imageFields struct {
	ID        string `validate:"required"`
	Content   string
	SourceURL string `validate:"required"`
	ImageURL  string `validate:"required"`
}

// ImageDocument is a captioned image. The caption is the Content; the raw
// image is kept beside the document and never written to the vector index.
type ImageDocument struct {
	f     imageFields
	image image.Image
}

// NewImageDocument validates its fields and returns an ImageDocument.
// img may be nil.
func NewImageDocument(id, caption, sourceURL, imageURL string, img image.Image) (*ImageDocument, error) {
	f := imageFields{ID: id, Content: caption, SourceURL: sourceURL, ImageURL: imageURL}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: image document: %v", ErrValidation, err)
	}
	return &ImageDocument{f: f, image: img}, nil
}

func (d *ImageDocument) ID() string        { return d.f.ID }
func (d *ImageDocument) Type() string      { return TypeImage }
func (d *ImageDocument) Content() string   { return d.f.Content }
func (d *ImageDocument) SourceURL() string { return d.f.SourceURL }
func (d *ImageDocument) ImageURL() string  { return d.f.ImageURL }

// Image returns the raw image payload, or nil when it was not loaded.
func (d *ImageDocument) Image() image.Image { return d.image }

// WithImage returns a copy of d carrying img.
func (d *ImageDocument) WithImage(img image.Image) *ImageDocument {
	return &ImageDocument{f: d.f, image: img}
}

func (d *ImageDocument) Metadata() map[string]string {
	return map[string]string{
		KeyID:        d.f.ID,
		KeyType:      TypeImage,
		KeyContent:   d.f.Content,
		KeySourceURL: d.f.SourceURL,
		KeyImageURL:  d.f.ImageURL,
	}
}

func (d *ImageDocument) String() string {
	return fmt.Sprintf("ImageDocument(id=%s, image_url=%s)", d.f.ID, d.f.ImageURL)
}

// Equal reports whether a and b have the same type, identity, content and
// metadata projection.
func Equal(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Type() == b.Type() &&
		a.ID() == b.ID() &&
		a.Content() == b.Content() &&
		maps.Equal(a.Metadata(), b.Metadata())
}

var (
	_ Document = (*TextDocument)(nil)
	_ Document = (*ImageDocument)(nil)
)
