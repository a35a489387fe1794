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

var geminiPricing = map[string][2]float64{
	"gemini-2.5-pro":   {1.25, 10.00},
	"gemini-2.5-flash": {0.15, 0.60},
	"gemini-2.0-flash": {0.10, 0.40},
	"gemini-1.5-pro":   {1.25, 5.00},
	"gemini-1.5-flash": {0.075, 0.30},
}

var geminiContextWindows = map[string]int{
	"gemini": 1048576,
}

const (
	geminiDefaultInputRate  = 0.10
	geminiDefaultOutputRate = 0.40
	geminiDefaultWindow     = 1048576
)

type GeminiProvider struct {
	config     *config.LLMProviderConfig
	httpClient *http.Client
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  geminiUsageMetadata   `json:"usageMetadata"`
	Error          *geminiError          `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func NewGeminiProviderFromConfig(cfg *config.LLMProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	return &GeminiProvider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) AvailableModels() []string {
	return []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash"}
}

func (p *GeminiProvider) Generate(ctx context.Context, req *GenerateRequest) (*AIResponse, error) {
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

	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     genCfg.Temperature,
			MaxOutputTokens: genCfg.MaxTokens,
			TopP:            genCfg.TopP,
			StopSequences:   genCfg.StopSequences,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	start := time.Now()
	resp, err := p.doRequest(ctx, model, body)
	latency := time.Since(start)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), resp.Error.Message)
	}

	// Blocked or truncated responses may carry no text parts at all.
	// Keep content empty, preserve the real finish reason, and still
	// report token usage; the validator decides what to do downstream.
	var text string
	finishReason := FinishOther
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
		finishReason = mapGeminiFinishReason(candidate.FinishReason)
	} else if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		slog.Warn("Gemini blocked the prompt", "block_reason", resp.PromptFeedback.BlockReason)
		finishReason = FinishSafety
	}

	usage := resp.UsageMetadata
	return &AIResponse{
		Content:          text,
		Model:            model,
		Provider:         p.Name(),
		PromptTokens:     usage.PromptTokenCount,
		CompletionTokens: usage.CandidatesTokenCount,
		TotalTokens:      usage.TotalTokenCount,
		EstimatedCost:    p.EstimateCost(usage.PromptTokenCount, usage.CandidatesTokenCount, model),
		FinishReason:     finishReason,
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, model string, body geminiRequest) (*geminiResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.config.Host, model, p.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, NewProviderError(ErrInvalidRequest, p.Name(), err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewProviderError(ErrUnknown, p.Name(), fmt.Sprintf("failed to decode response: %v", err))
	}
	return &parsed, nil
}

func (p *GeminiProvider) Pricing(model string) (float64, float64) {
	if rates, ok := longestPrefixMatch(geminiPricing, model); ok {
		return rates[0], rates[1]
	}
	slog.Warn("Unknown Gemini model, using default pricing", "model", model)
	return geminiDefaultInputRate, geminiDefaultOutputRate
}

func (p *GeminiProvider) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	in, out := p.Pricing(model)
	return float64(promptTokens)*in/1_000_000 + float64(completionTokens)*out/1_000_000
}

func (p *GeminiProvider) CountTokens(text, model string) int {
	// No local Gemini tokenizer; cl100k_base approximates well enough for
	// allocation heuristics.
	return countTokensForModel(text, "cl100k_base")
}

func (p *GeminiProvider) ContextWindow(model string) int {
	if window, ok := longestPrefixMatch(geminiContextWindows, model); ok {
		return window
	}
	slog.Warn("Unknown Gemini model, using default context window", "model", model)
	return geminiDefaultWindow
}

func mapGeminiFinishReason(reason string) FinishReason {
	switch reason {
	case "STOP":
		return FinishStop
	case "MAX_TOKENS":
		return FinishMaxTokens
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return FinishSafety
	default:
		return FinishOther
	}
}
