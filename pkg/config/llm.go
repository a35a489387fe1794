package config

import (
	"fmt"
	"os"
)

// LLMProviderConfig configures one LLM provider adapter.
type LLMProviderConfig struct {
	// Type selects the adapter (openai, anthropic, gemini).
	Type string `yaml:"type"`

	// Model is the default model id for this provider.
	Model string `yaml:"model,omitempty"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// Host overrides the default API endpoint.
	Host string `yaml:"host,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout in seconds for one provider attempt.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries per provider inside the orchestrator.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// Enabled gates whether the provider participates in routing.
	Enabled *bool `yaml:"enabled,omitempty"`
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "gpt-4o"
		case "anthropic":
			c.Model = "claude-sonnet-4-20250514"
		case "gemini":
			c.Model = "gemini-2.0-flash"
		}
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		case "anthropic":
			c.Host = "https://api.anthropic.com/v1"
		case "gemini":
			c.Host = "https://generativelanguage.googleapis.com/v1beta"
		}
	}
	if c.Temperature == nil {
		t := 0.7
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
}

func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("invalid provider type %q (valid: openai, anthropic, gemini)", c.Type)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Type)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// IsEnabled reports whether the provider participates in routing.
func (c *LLMProviderConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func apiKeyFromEnv(providerType string) string {
	switch providerType {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}
