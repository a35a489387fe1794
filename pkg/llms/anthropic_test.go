package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcanum-labs/arcanum/pkg/config"
)

func newTestAnthropicProvider(t *testing.T, host string) *AnthropicProvider {
	t.Helper()
	provider, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{
		Type:    "anthropic",
		Model:   "claude-sonnet-4-20250514",
		APIKey:  "ak-test",
		Host:    host,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("NewAnthropicProviderFromConfig() error = %v", err)
	}
	return provider
}

func TestAnthropicProvider_Generate(t *testing.T) {
	var gotReq anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "ak-test" {
			t.Errorf("x-api-key = %q, want ak-test", key)
		}
		if version := r.Header.Get("anthropic-version"); version != anthropicVersion {
			t.Errorf("anthropic-version = %q, want %q", version, anthropicVersion)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "{\"summary\":"},
				{Type: "text", Text: "\"done\"}"},
			},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 120, OutputTokens: 80},
		})
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL)
	resp, err := provider.Generate(context.Background(), &GenerateRequest{
		Prompt:       "interpret the spread",
		SystemPrompt: "you are a tarot reader",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Multiple text blocks concatenate.
	if resp.Content != "{\"summary\":\"done\"}" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != FinishStop {
		t.Errorf("FinishReason = %v, want stop", resp.FinishReason)
	}
	if resp.TotalTokens != 200 {
		t.Errorf("TotalTokens = %d, want 200", resp.TotalTokens)
	}
	if resp.EstimatedCost <= 0 {
		t.Errorf("EstimatedCost = %v, want > 0", resp.EstimatedCost)
	}

	if gotReq.System != "you are a tarot reader" {
		t.Errorf("request system = %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("request messages = %+v, want single user message", gotReq.Messages)
	}
	if gotReq.MaxTokens == 0 {
		t.Error("request max_tokens = 0, want default budget")
	}
}

func TestAnthropicProvider_Generate_Overloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		w.Write([]byte(`{"error":{"type":"overloaded_error","message":"overloaded"}}`))
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL)
	_, err := provider.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})

	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("Generate() error = %v, want *ProviderError", err)
	}
	if pe.Kind != ErrServiceUnavailable {
		t.Errorf("Kind = %v, want service_unavailable", pe.Kind)
	}
}

func TestAnthropicProvider_Generate_RefusalFinish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContent{},
			StopReason: "refusal",
		})
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL)
	resp, err := provider.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.FinishReason != FinishSafety {
		t.Errorf("FinishReason = %v, want safety", resp.FinishReason)
	}
	if resp.Content != "" {
		t.Errorf("Content = %q, want empty", resp.Content)
	}
}

func TestNewAnthropicProviderFromConfig_RequiresKey(t *testing.T) {
	_, err := NewAnthropicProviderFromConfig(&config.LLMProviderConfig{Type: "anthropic"})
	if err == nil {
		t.Fatal("NewAnthropicProviderFromConfig() expected error for missing api key")
	}
}

func TestAnthropicProvider_Pricing(t *testing.T) {
	provider := newTestAnthropicProvider(t, "http://localhost")

	// Dated model names resolve through the prefix table.
	in, out := provider.Pricing("claude-sonnet-4-20250514")
	if in != 3.00 || out != 15.00 {
		t.Errorf("Pricing(claude-sonnet-4-20250514) = %v/%v, want 3/15", in, out)
	}

	in, out = provider.Pricing("claude-unknown")
	if in != anthropicDefaultInputRate || out != anthropicDefaultOutputRate {
		t.Errorf("Pricing(claude-unknown) = %v/%v, want defaults", in, out)
	}
}

func TestMapAnthropicStopReason(t *testing.T) {
	cases := map[string]FinishReason{
		"end_turn":      FinishStop,
		"stop_sequence": FinishStop,
		"max_tokens":    FinishMaxTokens,
		"refusal":       FinishSafety,
		"tool_use":      FinishOther,
	}
	for reason, want := range cases {
		if got := mapAnthropicStopReason(reason); got != want {
			t.Errorf("mapAnthropicStopReason(%q) = %v, want %v", reason, got, want)
		}
	}
}
