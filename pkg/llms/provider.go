package llms

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/registry"
)

// Provider is the uniform interface over one LLM vendor.
type Provider interface {
	// Name identifies the vendor (openai, anthropic, gemini).
	Name() string

	// AvailableModels enumerates accepted model ids.
	AvailableModels() []string

	// Generate performs a single round-trip. Vendor failures are
	// translated into *ProviderError.
	Generate(ctx context.Context, req *GenerateRequest) (*AIResponse, error)

	// Pricing returns (input, output) USD per 1M tokens for a model,
	// longest-prefix matched against the adapter's table.
	Pricing(model string) (float64, float64)

	// EstimateCost computes the USD cost of a call.
	EstimateCost(promptTokens, completionTokens int, model string) float64

	// CountTokens is best-effort; approximate when the vendor does not
	// expose a tokenizer.
	CountTokens(text, model string) int

	// ContextWindow returns the model's maximum context size.
	ContextWindow(model string) int
}

// ProviderRegistry builds and holds providers by name.
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// CreateFromConfig instantiates and registers an adapter.
func (r *ProviderRegistry) CreateFromConfig(cfg *config.LLMProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config cannot be nil")
	}

	var provider Provider
	var err error

	switch cfg.Type {
	case "openai":
		provider, err = NewOpenAIProviderFromConfig(cfg)
	case "anthropic":
		provider, err = NewAnthropicProviderFromConfig(cfg)
	case "gemini":
		provider, err = NewGeminiProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s (supported: openai, anthropic, gemini)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	if err := r.Register(cfg.Type, provider); err != nil {
		return nil, fmt.Errorf("failed to register provider: %w", err)
	}

	return provider, nil
}

// longestPrefixMatch picks the table entry whose key is the longest prefix
// of model, so "gpt-4-turbo-preview" wins over "gpt-4".
func longestPrefixMatch[T any](table map[string]T, model string) (T, bool) {
	var (
		best    T
		bestLen = -1
	)
	// Sorted iteration keeps ties deterministic.
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(model, k) && len(k) > bestLen {
			best = table[k]
			bestLen = len(k)
		}
	}
	return best, bestLen >= 0
}

// supportsModel reports whether model matches any table entry by prefix.
func supportsModel(models []string, model string) bool {
	for _, m := range models {
		if m == model || strings.HasPrefix(model, m) {
			return true
		}
	}
	return false
}
