package rag

import "errors"

var (
	// ErrInitialization indicates the orchestrator was built from an unusable
	// store, model or prompt template.
	ErrInitialization = errors.New("rag initialization failed")

	// ErrInvalidInput indicates a malformed query.
	ErrInvalidInput = errors.New("invalid query")

	// ErrRetrieval indicates the vector store search failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrPrompt indicates the prompt template could not be rendered.
	ErrPrompt = errors.New("prompt rendering failed")

	// ErrGeneration indicates the language model call failed.
	ErrGeneration = errors.New("answer generation failed")
)
