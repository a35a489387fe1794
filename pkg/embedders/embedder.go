// Package embedders provides the multilingual sentence-embedding model
// behind the retrieval pipeline: a uniform interface, HTTP adapters, and
// a process-wide singleton.
package embedders

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcanum-labs/arcanum/pkg/config"
)

// Embedder encodes text into dense vectors. Deterministic for a given
// input.
type Embedder interface {
	// Encode embeds a batch of texts. Empty input is an error.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// EncodeSingle embeds one text.
	EncodeSingle(ctx context.Context, text string) ([]float32, error)

	// Dimension of the produced vectors.
	Dimension() int

	// ModelName identifies the embedding model.
	ModelName() string
}

// NewFromConfig constructs the adapter selected by the config.
func NewFromConfig(cfg *config.EmbedderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}
	switch cfg.Type {
	case "ollama":
		return NewOllamaEmbedderFromConfig(cfg)
	case "openai":
		return NewOpenAIEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s (supported: ollama, openai)", cfg.Type)
	}
}

var (
	singleton     Embedder
	singletonErr  error
	singletonOnce sync.Once
)

// Default returns the process-wide embedder, constructed on first access
// from cfg. Later calls ignore cfg and return the same instance.
func Default(cfg *config.EmbedderConfig) (Embedder, error) {
	singletonOnce.Do(func() {
		singleton, singletonErr = NewFromConfig(cfg)
	})
	return singleton, singletonErr
}
