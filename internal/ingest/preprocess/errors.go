// Package preprocess turns parsed pages into text chunks and captioned images.
package preprocess

import "errors"

var (
	// ErrInvalidConfig indicates invalid preprocessing configuration.
	ErrInvalidConfig = errors.New("invalid preprocessing config")

	// ErrTextExtraction indicates text could not be extracted from elements.
	ErrTextExtraction = errors.New("text extraction failed")

	// ErrSplitting indicates text could not be split into chunks.
	ErrSplitting = errors.New("text splitting failed")

	// ErrImageLoading indicates an image could not be fetched or decoded.
	ErrImageLoading = errors.New("image loading failed")

	// ErrImageDescription indicates an image could not be captioned.
	ErrImageDescription = errors.New("image description failed")
)
