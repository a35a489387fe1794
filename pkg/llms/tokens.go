package llms

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter wraps a tiktoken encoding for one model.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// NewTokenCounter creates a counter for a model. Models without a native
// tiktoken mapping (Claude, Gemini) fall back to cl100k_base, which is
// close enough for cost estimation and allocation heuristics.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingCacheMu.RLock()
	cached, exists := encodingCache[model]
	encodingCacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = encoding
	encodingCacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// Model returns the model this counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// countTokensForModel counts tokens with a cached encoding, falling back
// to a chars/4 estimate when no encoding can be constructed.
func countTokensForModel(text, model string) int {
	tc, err := NewTokenCounter(model)
	if err != nil {
		return len(text) / 4
	}
	return tc.Count(text)
}
