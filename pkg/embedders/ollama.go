package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/arcanum-labs/arcanum/pkg/config"
)

// Serializes Ollama embedding requests: the llama runner crashes when it
// receives concurrent embedding calls.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder embeds text through a local Ollama instance. The default
// model is a multilingual MiniLM so Korean and English share one space.
type OllamaEmbedder struct {
	config     *config.EmbedderConfig
	httpClient *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewOllamaEmbedderFromConfig(cfg *config.EmbedderConfig) (*OllamaEmbedder, error) {
	return &OllamaEmbedder{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (e *OllamaEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("cannot encode empty input")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.EncodeSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *OllamaEmbedder) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(b))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama")
	}
	return parsed.Embedding, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.config.Dimension
}

func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}
