package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcanum-labs/arcanum/pkg/config"
)

var openAIPricing = map[string][2]float64{
	"gpt-4o":              {2.50, 10.00},
	"gpt-4o-mini":         {0.15, 0.60},
	"gpt-4-turbo":         {10.00, 30.00},
	"gpt-4-turbo-preview": {10.00, 30.00},
	"gpt-4":               {30.00, 60.00},
	"gpt-4.1":             {2.00, 8.00},
	"gpt-4.1-mini":        {0.40, 1.60},
	"gpt-3.5-turbo":       {0.50, 1.50},
}

var openAIContextWindows = map[string]int{
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4-turbo":   128000,
	"gpt-4":         8192,
	"gpt-4.1":       1047576,
	"gpt-3.5-turbo": 16385,
}

const (
	openAIDefaultInputRate  = 2.50
	openAIDefaultOutputRate = 10.00
	openAIDefaultWindow     = 128000
)

type OpenAIProvider struct {
	config     *config.LLMProviderConfig
	httpClient *http.Client
}

type openAIRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p,omitempty"`
	FrequencyPenalty float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func NewOpenAIProviderFromConfig(cfg *config.LLMProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return &OpenAIProvider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) AvailableModels() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4.1", "gpt-4.1-mini", "gpt-3.5-turbo"}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*AIResponse, error) {
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

	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIRequest{
		Model:            model,
		Messages:         messages,
		MaxTokens:        genCfg.MaxTokens,
		Temperature:      genCfg.Temperature,
		TopP:             genCfg.TopP,
		FrequencyPenalty: genCfg.FrequencyPenalty,
		PresencePenalty:  genCfg.PresencePenalty,
		Stop:             genCfg.StopSequences,
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
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(ErrUnknown, p.Name(), "response contained no choices")
	}

	choice := resp.Choices[0]
	return &AIResponse{
		Content:          choice.Message.Content,
		Model:            model,
		Provider:         p.Name(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		EstimatedCost:    p.EstimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, model),
		FinishReason:     mapOpenAIFinishReason(choice.FinishReason),
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body openAIRequest) (*openAIResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := p.config.Host + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

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
		return nil, errorFromHTTP(p.Name(), resp.StatusCode, string(respBody), resp.Header)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), fmt.Sprintf("failed to decode response: %v", err))
	}
	return &parsed, nil
}

func (p *OpenAIProvider) Pricing(model string) (float64, float64) {
	if rates, ok := longestPrefixMatch(openAIPricing, model); ok {
		return rates[0], rates[1]
	}
	slog.Warn("Unknown OpenAI model, using default pricing", "model", model)
	return openAIDefaultInputRate, openAIDefaultOutputRate
}

func (p *OpenAIProvider) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	in, out := p.Pricing(model)
	return float64(promptTokens)*in/1_000_000 + float64(completionTokens)*out/1_000_000
}

func (p *OpenAIProvider) CountTokens(text, model string) int {
	if model == "" {
		model = p.config.Model
	}
	return countTokensForModel(text, model)
}

func (p *OpenAIProvider) ContextWindow(model string) int {
	if window, ok := longestPrefixMatch(openAIContextWindows, model); ok {
		return window
	}
	slog.Warn("Unknown OpenAI model, using default context window", "model", model)
	return openAIDefaultWindow
}

func mapOpenAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishStop
	case "length":
		return FinishMaxTokens
	case "content_filter":
		return FinishSafety
	default:
		return FinishOther
	}
}

// translateTransportError maps client-side transport failures, notably
// context deadline expiry, into the taxonomy.
func translateTransportError(provider string, ctx context.Context, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return NewProviderError(ErrTimeout, provider, "request deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(ErrTimeout, provider, "request canceled")
	}
	return NewProviderError(ErrServiceUnavailable, provider, err.Error())
}
