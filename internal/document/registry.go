package document

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry errors.
var (
	// ErrInvalidDocumentType is returned when a registration is not a usable
	// (Document, Converter) pair.
	ErrInvalidDocumentType = errors.New("invalid document type")

	// ErrTypeAlreadyRegistered is returned when a type tag is registered twice.
	ErrTypeAlreadyRegistered = errors.New("document type already registered")

	// ErrUnknownDocumentType is returned when a stored record carries a type
	// tag without a registered converter.
	ErrUnknownDocumentType = errors.New("unknown document type")
)

// Converter rebuilds a typed Document from its persisted projection.
type Converter func(rec Record) (Document, error)

type registration struct {
	goType    reflect.Type
	converter Converter
}

// Registry maps type tags to converters. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns a Registry preloaded with the text and image converters.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	r.entries[TypeText] = registration{goType: reflect.TypeOf((*TextDocument)(nil)), converter: TextConverter}
	r.entries[TypeImage] = registration{goType: reflect.TypeOf((*ImageDocument)(nil)), converter: ImageConverter}
	return r
}

// NewEmptyRegistry returns a Registry with no registered types.
func NewEmptyRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a new document type. example supplies both the type tag and
// the Go type that documents of that tag must have.
func (r *Registry) Register(example Document, conv Converter) error {
	if example == nil || isNilPointer(example) {
		return fmt.Errorf("%w: example document is nil", ErrInvalidDocumentType)
	}
	if conv == nil {
		return fmt.Errorf("%w: converter is nil", ErrInvalidDocumentType)
	}
	tag := example.Type()
	if tag == "" {
		return fmt.Errorf("%w: %T has an empty type tag", ErrInvalidDocumentType, example)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[tag]; ok {
		return fmt.Errorf("%w: %q", ErrTypeAlreadyRegistered, tag)
	}
	r.entries[tag] = registration{goType: reflect.TypeOf(example), converter: conv}
	return nil
}

// Supports reports whether doc's type tag is registered for doc's Go type.
func (r *Registry) Supports(doc Document) bool {
	if doc == nil || isNilPointer(doc) {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[doc.Type()]
	return ok && reg.goType == reflect.TypeOf(doc)
}

// Convert rebuilds a Document from rec using the converter registered for the
// record's type tag.
func (r *Registry) Convert(rec Record) (Document, error) {
	tag := rec.Metadata[KeyType]
	if tag == "" {
		return nil, fmt.Errorf("%w: record %s has no type tag", ErrUnknownDocumentType, rec.ID)
	}

	r.mu.RLock()
	reg, ok := r.entries[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (record %s)", ErrUnknownDocumentType, tag, rec.ID)
	}
	return reg.converter(rec)
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.entries))
	for tag := range r.entries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// TextConverter rebuilds a TextDocument.
func TextConverter(rec Record) (Document, error) {
	return NewTextDocument(recordID(rec), recordContent(rec), rec.Metadata[KeySourceURL])
}

// ImageConverter rebuilds an ImageDocument without its image payload.
func ImageConverter(rec Record) (Document, error) {
	return NewImageDocument(recordID(rec), recordContent(rec), rec.Metadata[KeySourceURL], rec.Metadata[KeyImageURL], nil)
}

// recordID prefers the id stored in metadata, which is the document's own id
// even when a backend keys rows differently.
func recordID(rec Record) string {
	if id := rec.Metadata[KeyID]; id != "" {
		return id
	}
	return rec.ID
}

func recordContent(rec Record) string {
	if rec.Content != "" {
		return rec.Content
	}
	return rec.Metadata[KeyContent]
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
