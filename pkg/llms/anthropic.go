package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcanum-labs/arcanum/pkg/config"
)

const anthropicVersion = "2023-06-01"

var anthropicPricing = map[string][2]float64{
	"claude-opus-4":     {15.00, 75.00},
	"claude-sonnet-4":   {3.00, 15.00},
	"claude-3-7-sonnet": {3.00, 15.00},
	"claude-3-5-sonnet": {3.00, 15.00},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-3-haiku":    {0.25, 1.25},
	"claude-3-opus":     {15.00, 75.00},
}

var anthropicContextWindows = map[string]int{
	"claude": 200000,
}

const (
	anthropicDefaultInputRate  = 3.00
	anthropicDefaultOutputRate = 15.00
	anthropicDefaultWindow     = 200000
)

type AnthropicProvider struct {
	config     *config.LLMProviderConfig
	httpClient *http.Client
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	Temperature   float64            `json:"temperature,omitempty"`
	TopP          float64            `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAnthropicProviderFromConfig(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicProvider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) AvailableModels() []string {
	return []string{"claude-sonnet-4", "claude-opus-4", "claude-3-7-sonnet", "claude-3-5-sonnet", "claude-3-5-haiku", "claude-3-haiku"}
}

func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerateRequest) (*AIResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	genCfg := NewGenerationConfig()
	if req.Config != nil {
		genCfg = *req.Config
	}
	if err := genCfg.Validate(); err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), err.Error())
	}

	body := anthropicRequest{
		Model:         model,
		MaxTokens:     genCfg.MaxTokens,
		System:        req.SystemPrompt,
		Messages:      []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature:   genCfg.Temperature,
		TopP:          genCfg.TopP,
		StopSequences: genCfg.StopSequences,
	}

	start := time.Now()
	resp, err := p.doRequest(ctx, body)
	latency := time.Since(start)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), resp.Error.Message)
	}

	var text string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	promptTokens := resp.Usage.InputTokens
	completionTokens := resp.Usage.OutputTokens

	return &AIResponse{
		Content:          text,
		Model:            model,
		Provider:         p.Name(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCost:    p.EstimateCost(promptTokens, completionTokens, model),
		FinishReason:     mapAnthropicStopReason(resp.StopReason),
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body anthropicRequest) (*anthropicResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := p.config.Host + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, translateTransportError(p.Name(), ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		// 529 is Anthropic's "overloaded" status; KindFromStatus already
		// treats it as service_unavailable.
		return nil, errorFromHTTP(p.Name(), resp.StatusCode, string(respBody), resp.Header)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), fmt.Sprintf("failed to decode response: %v", err))
	}
	return &parsed, nil
}

func (p *AnthropicProvider) Pricing(model string) (float64, float64) {
	if rates, ok := longestPrefixMatch(anthropicPricing, model); ok {
		return rates[0], rates[1]
	}
	slog.Warn("Unknown Anthropic model, using default pricing", "model", model)
	return anthropicDefaultInputRate, anthropicDefaultOutputRate
}

func (p *AnthropicProvider) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	in, out := p.Pricing(model)
	return float64(promptTokens)*in/1_000_000 + float64(completionTokens)*out/1_000_000
}

func (p *AnthropicProvider) CountTokens(text, model string) int {
	// Anthropic does not ship a public tokenizer; cl100k_base is a close
	// approximation for allocation purposes.
	return countTokensForModel(text, "cl100k_base")
}

func (p *AnthropicProvider) ContextWindow(model string) int {
	if window, ok := longestPrefixMatch(anthropicContextWindows, model); ok {
		return window
	}
	slog.Warn("Unknown Anthropic model, using default context window", "model", model)
	return anthropicDefaultWindow
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "max_tokens":
		return FinishMaxTokens
	case "refusal":
		return FinishSafety
	default:
		return FinishOther
	}
}
