// Package llms defines the provider abstraction: the uniform request and
// response shapes, the closed error taxonomy, per-vendor adapters, and the
// model metadata registry.
package llms

import (
	"fmt"
	"time"
)

// FinishReason is the closed set of reasons a generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishSafety    FinishReason = "safety"
	FinishOther     FinishReason = "other"
)

// GenerationConfig carries the sampling parameters of one call.
// Zero value is not valid; construct via NewGenerationConfig.
type GenerationConfig struct {
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	TopP             float64  `json:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
}

// NewGenerationConfig returns a config with the pipeline defaults.
func NewGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        1.0,
	}
}

// Validate checks parameter ranges.
func (c GenerationConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in [0, 1], got %v", c.TopP)
	}
	return nil
}

// GenerateRequest is the uniform outbound request shape.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string

	// Model overrides the provider's default model when set.
	Model string

	// Config overrides the provider's default sampling parameters.
	Config *GenerationConfig
}

// AIResponse is one provider call's outcome. Immutable after creation.
type AIResponse struct {
	Content          string       `json:"content"`
	Model            string       `json:"model"`
	Provider         string       `json:"provider"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	TotalTokens      int          `json:"total_tokens"`
	EstimatedCost    float64      `json:"estimated_cost"`
	FinishReason     FinishReason `json:"finish_reason"`
	LatencyMS        int64        `json:"latency_ms"`
	CreatedAt        time.Time    `json:"created_at"`
}

// OrchestratorResponse is the outcome of one orchestrated generate call.
// AllAttempts preserves the ordered history across retries and fallbacks;
// Primary is always the last (successful) attempt.
type OrchestratorResponse struct {
	Primary     *AIResponse   `json:"primary"`
	AllAttempts []*AIResponse `json:"all_attempts"`
	TotalCost   float64       `json:"total_cost"`
}
