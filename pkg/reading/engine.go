package reading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/prompts"
	"github.com/arcanum-labs/arcanum/pkg/rag"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Purpose names the role of an LLM call in the usage log.
type Purpose string

const (
	PurposeMainReading    Purpose = "main_reading"
	PurposeRetry          Purpose = "retry"
	PurposeParseRetry     Purpose = "parse_retry"
	PurposeCardBatch      Purpose = "card_batch"
	PurposeOverallReading Purpose = "overall_reading"
	PurposeRelationships  Purpose = "relationships"
	PurposeAdvice         Purpose = "advice"
)

// UsageLog records one LLM call for persistence and analytics.
type UsageLog struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
	LatencySeconds   float64 `json:"latency_seconds"`
	Purpose          Purpose `json:"purpose"`
}

func usageFrom(resp *llms.OrchestratorResponse, purpose Purpose) UsageLog {
	p := resp.Primary
	return UsageLog{
		Provider:         p.Provider,
		Model:            p.Model,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: p.CompletionTokens,
		TotalTokens:      p.TotalTokens,
		EstimatedCost:    resp.TotalCost,
		LatencySeconds:   float64(p.LatencyMS) / 1000,
		Purpose:          purpose,
	}
}

// Request describes one reading to generate. Cards may be pre-drawn (the
// streaming path draws them itself to emit per-card events); when empty
// the engine draws.
type Request struct {
	Question    string
	SpreadType  tarot.SpreadType
	Category    string
	UserContext string
	Language    string
	Cards       []tarot.DrawnCard

	// Context carries a pre-built enrichment (the streaming path enriches
	// itself to report progress); when nil the engine enriches.
	Context *rag.EnrichedContext

	// OnRetry is called before each truncation retry, for progress
	// reporting. May be nil.
	OnRetry func(attempt int)
}

// Result is a finished reading plus everything that produced it.
type Result struct {
	Reading  *tarot.ReadingResponse
	Cards    []tarot.DrawnCard
	Context  *rag.EnrichedContext
	Attempts []*llms.OrchestratorResponse
	Usage    []UsageLog
}

// Per-spread output budgets. Korean output runs token-hungry, so the
// default language gets the larger budgets.
var spreadMaxTokens = map[tarot.SpreadType]map[string]int{
	tarot.SpreadOneCard: {
		"ko": 2000,
		"en": 1600,
	},
	tarot.SpreadThreeCardPastPresent: {
		"ko": 3500,
		"en": 2800,
	},
	tarot.SpreadThreeCardSituationAction: {
		"ko": 3500,
		"en": 2800,
	},
}

// MaxTokensFor returns the output budget for a spread and language,
// falling back to the Korean figure and then to 2000.
func MaxTokensFor(spreadType tarot.SpreadType, language string) int {
	table, ok := spreadMaxTokens[spreadType]
	if !ok {
		return 2000
	}
	if n, ok := table[language]; ok {
		return n
	}
	return table["ko"]
}

// Engine is the single-call pipeline for the one-card and three-card
// spreads: draw, enrich, prompt, orchestrate, parse with truncation
// retries, validate.
type Engine struct {
	orch      orchestrator.Generator
	enricher  *rag.Enricher
	builder   *prompts.Builder
	shuffler  *tarot.Shuffler
	allocator *Allocator

	maxParseRetries int
}

// NewEngine wires the single-call engine.
func NewEngine(orch orchestrator.Generator, enricher *rag.Enricher, builder *prompts.Builder, shuffler *tarot.Shuffler, allocator *Allocator, cfg *config.ReadingConfig) *Engine {
	maxParseRetries := 2
	if cfg != nil {
		maxParseRetries = cfg.MaxParseRetries
	}
	return &Engine{
		orch:            orch,
		enricher:        enricher,
		builder:         builder,
		shuffler:        shuffler,
		allocator:       allocator,
		maxParseRetries: maxParseRetries,
	}
}

// Generate runs the full single-call pipeline.
func (e *Engine) Generate(ctx context.Context, req *Request) (*Result, error) {
	spread, err := tarot.GetSpread(req.SpreadType)
	if err != nil {
		return nil, err
	}
	if spread.Type == tarot.SpreadCelticCross {
		return nil, fmt.Errorf("celtic cross readings go through the parallel engine")
	}

	cards := req.Cards
	if len(cards) == 0 {
		cards, err = e.shuffler.Draw(spread.CardCount)
		if err != nil {
			return nil, fmt.Errorf("failed to draw cards: %w", err)
		}
	}
	if len(cards) != spread.CardCount {
		return nil, fmt.Errorf("spread %s requires %d cards, got %d", spread.Type, spread.CardCount, len(cards))
	}

	language := req.Language
	if language == "" {
		language = "ko"
	}

	enriched := req.Context
	if enriched == nil {
		enriched = e.enricher.Enrich(ctx, cards, req.SpreadType, req.Question, req.Category, language)
	}
	contextText := e.enricher.Format(enriched, rag.FormatDetailed)

	prompt, err := e.builder.BuildFullPrompt(prompts.BuildRequest{
		Question:    req.Question,
		Cards:       cards,
		SpreadType:  req.SpreadType,
		Category:    req.Category,
		UserContext: req.UserContext,
		Language:    language,
		Context:     contextText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	genCfg := llms.NewGenerationConfig()
	genCfg.MaxTokens = MaxTokensFor(req.SpreadType, language)

	result := &Result{Cards: cards, Context: enriched}

	var parsed *tarot.ReadingResponse
	for attempt := 0; ; attempt++ {
		cfg := genCfg
		resp, err := e.orch.Generate(ctx, &llms.GenerateRequest{
			Prompt:       prompt.UserPrompt,
			SystemPrompt: prompt.SystemPrompt,
			Config:       &cfg,
		})
		if err != nil {
			return nil, err
		}

		purpose := PurposeMainReading
		if attempt > 0 {
			purpose = PurposeParseRetry
		}
		result.Attempts = append(result.Attempts, resp)
		result.Usage = append(result.Usage, usageFrom(resp, purpose))

		parsed, err = ParseReading(resp.Primary.Content, resp.Primary.FinishReason)
		if err == nil {
			break
		}

		ee, ok := AsExtractionError(err)
		if !ok || !ee.Truncated || attempt >= e.maxParseRetries {
			return nil, err
		}

		// Output was cut off: grow the budget and try again.
		genCfg.MaxTokens = e.inflate(genCfg.MaxTokens, resp.Primary.Model)
		slog.Warn("Reading truncated, retrying with larger output budget",
			"attempt", attempt+1,
			"max_tokens", genCfg.MaxTokens)
		if req.OnRetry != nil {
			req.OnRetry(attempt + 1)
		}
	}

	if err := Validate(parsed, spread, RulesForSpread(req.SpreadType)); err != nil {
		return nil, err
	}

	result.Reading = parsed
	return result, nil
}

// inflate grows a token budget by half, bounded by the model's ceiling.
func (e *Engine) inflate(maxTokens int, model string) int {
	grown := maxTokens * 3 / 2
	if ceiling := e.allocator.TokenCeiling(model); grown > ceiling {
		return ceiling
	}
	return grown
}
