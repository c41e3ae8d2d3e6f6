package vectorstore

import (
	"errors"
	"fmt"
)

// Operation error kinds.
var (
	// ErrInitialization indicates the backend handle could not be opened.
	ErrInitialization = errors.New("vector store initialization failed")

	// ErrDocumentAddition indicates documents could not be inserted.
	ErrDocumentAddition = errors.New("document addition failed")

	// ErrSimilaritySearch indicates a query failed.
	ErrSimilaritySearch = errors.New("similarity search failed")

	// ErrCleaning indicates the collection could not be emptied.
	ErrCleaning = errors.New("vector store cleaning failed")

	// ErrSaving indicates a checkpoint could not be written.
	ErrSaving = errors.New("vector store saving failed")

	// ErrLoading indicates a collection could not be reopened from a path.
	ErrLoading = errors.New("vector store loading failed")
)

var (
	// ErrInvalidInput indicates malformed arguments. It is returned inside an
	// OpError before the backend is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrUnsupported indicates the backend cannot perform the operation.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("vector store closed")
)

// OpError describes a failed store operation.
type OpError struct {
	Op         string // add_documents, similarity_search, clean, save, load, ...
	Kind       error  // one of the operation error kinds
	Collection string
	Err        error // underlying cause
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Collection)
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func opError(op string, kind error, collection string, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Collection: collection, Err: err}
}
