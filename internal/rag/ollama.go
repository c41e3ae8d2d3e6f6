package rag

import (
	"fmt"
	"net/url"

	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultModel is the Ollama model that answers queries.
const DefaultModel = "llama3.2"

// NewOllamaModel returns a client for model on the Ollama server at
// serverURL. Empty values mean OLLAMA_HOST (or localhost) and DefaultModel.
func NewOllamaModel(serverURL, model string) (*ollama.LLM, error) {
	if model == "" {
		model = DefaultModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		// ollama.WithServerURL exits the process on a parse error.
		if _, err := url.Parse(serverURL); err != nil {
			return nil, fmt.Errorf("%w: invalid ollama server url: %w", ErrInitialization, err)
		}
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating ollama client: %w", ErrInitialization, err)
	}
	return llm, nil
}
