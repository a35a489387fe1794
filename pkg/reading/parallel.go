package reading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/prompts"
	"github.com/arcanum-labs/arcanum/pkg/rag"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Workflow drives the parallel engine: the spread's canonical positions,
// batching and concurrency caps, and the four template families.
type Workflow struct {
	Spread         tarot.Spread
	BatchSize      int
	MaxConcurrency int

	CardTemplate          string
	OverallTemplate       string
	RelationshipsTemplate string
	AdviceTemplate        string
}

// CelticCrossWorkflow returns the default ten-card workflow.
func CelticCrossWorkflow() Workflow {
	spread, _ := tarot.GetSpread(tarot.SpreadCelticCross)
	return Workflow{
		Spread:                spread,
		BatchSize:             3,
		MaxConcurrency:        5,
		CardTemplate:          prompts.TemplateCelticCard,
		OverallTemplate:       prompts.TemplateCelticOverall,
		RelationshipsTemplate: prompts.TemplateCelticRelationships,
		AdviceTemplate:        prompts.TemplateCelticAdvice,
	}
}

// summaryLimit caps the overall-reading excerpt fed to the advice call.
const summaryLimit = 500

// ParallelEngine is the batched multi-phase pipeline for the Celtic
// Cross: card interpretations in concurrent batches, then overall reading
// and relationship analysis in parallel, then advice derived from the
// overall reading. One semaphore caps in-flight LLM calls across all
// phases.
type ParallelEngine struct {
	orch      orchestrator.Generator
	enricher  *rag.Enricher
	builder   *prompts.Builder
	shuffler  *tarot.Shuffler
	allocator *Allocator
	workflow  Workflow

	maxParseRetries int
}

// NewParallelEngine wires the parallel engine. Config overrides the
// workflow's batching and concurrency when set.
func NewParallelEngine(orch orchestrator.Generator, enricher *rag.Enricher, builder *prompts.Builder, shuffler *tarot.Shuffler, allocator *Allocator, workflow Workflow, cfg *config.ReadingConfig) *ParallelEngine {
	maxParseRetries := 2
	if cfg != nil {
		maxParseRetries = cfg.MaxParseRetries
		if cfg.BatchSize > 0 {
			workflow.BatchSize = cfg.BatchSize
		}
		if cfg.MaxConcurrency > 0 {
			workflow.MaxConcurrency = cfg.MaxConcurrency
		}
	}
	return &ParallelEngine{
		orch:            orch,
		enricher:        enricher,
		builder:         builder,
		shuffler:        shuffler,
		allocator:       allocator,
		workflow:        workflow,
		maxParseRetries: maxParseRetries,
	}
}

type batchPayload struct {
	Cards []tarot.CardInterpretation `json:"cards"`
}

type overallPayload struct {
	OverallReading string `json:"overall_reading"`
	Summary        string `json:"summary"`
}

type relationshipsPayload struct {
	CardRelationships string `json:"card_relationships"`
}

type advicePayload struct {
	Advice tarot.Advice `json:"advice"`
}

// Generate runs the full multi-phase pipeline.
func (e *ParallelEngine) Generate(ctx context.Context, req *Request) (*Result, error) {
	spread := e.workflow.Spread

	cards := req.Cards
	var err error
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
		enriched = e.enricher.Enrich(ctx, cards, spread.Type, req.Question, req.Category, language)
	}
	contextText := e.enricher.Format(enriched, rag.FormatConcise)

	systemPrompt, err := e.builder.Render(prompts.TemplateSystem, prompts.ReadingData{
		Question: req.Question,
		Category: req.Category,
		Language: language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	translated := prompts.TranslateCards(cards, spread.Positions)

	sem := semaphore.NewWeighted(int64(e.workflow.MaxConcurrency))
	result := &Result{Cards: cards, Context: enriched}

	var resultMu sync.Mutex
	record := func(resp *llms.OrchestratorResponse, purpose Purpose) {
		resultMu.Lock()
		defer resultMu.Unlock()
		result.Attempts = append(result.Attempts, resp)
		result.Usage = append(result.Usage, usageFrom(resp, purpose))
	}

	// Phase 1: card interpretations in batches.
	batches := batchIndices(len(translated), e.workflow.BatchSize)
	interpretations := make([]*tarot.CardInterpretation, len(translated))

	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			parsed, err := e.generateCardBatch(gctx, req.Question, contextText, systemPrompt, translated, batch, record)
			if err != nil {
				return err
			}
			// Only the batch's own positions are accepted; anything else
			// would write slice elements owned by a sibling goroutine.
			for _, ci := range parsed {
				idx := positionIndex(spread.Positions, ci.Position)
				if idx < 0 || !indexInBatch(batch, idx) {
					slog.Warn("Batch returned position outside its batch, dropping", "position", ci.Position)
					continue
				}
				interpretations[idx] = &ci
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("card interpretation phase failed: %w", err)
	}

	for i, ci := range interpretations {
		if ci == nil {
			return nil, &ValidationError{
				Field:   "cards",
				Message: fmt.Sprintf("no interpretation produced for position %s", spread.Positions[i]),
			}
		}
	}

	// Phase 2: overall reading and relationships in parallel.
	var (
		overall       overallPayload
		relationships string
	)
	g2, g2ctx := errgroup.WithContext(ctx)
	g2.Go(func() error {
		if err := sem.Acquire(g2ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)
		return e.generateSection(g2ctx, e.workflow.OverallTemplate, prompts.ReadingData{
			Question: req.Question,
			Language: language,
			Context:  contextText,
			Cards:    translated,
		}, systemPrompt, TaskOverallReading, PurposeOverallReading, &overall, record)
	})
	g2.Go(func() error {
		if !e.builder.Has(e.workflow.RelationshipsTemplate) {
			relationships = defaultRelationships
			return nil
		}
		if err := sem.Acquire(g2ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)
		var payload relationshipsPayload
		err := e.generateSection(g2ctx, e.workflow.RelationshipsTemplate, prompts.ReadingData{
			Question: req.Question,
			Language: language,
			Cards:    translated,
		}, systemPrompt, TaskRelationships, PurposeRelationships, &payload, record)
		if err != nil {
			return err
		}
		relationships = payload.CardRelationships
		return nil
	})
	if err := g2.Wait(); err != nil {
		return nil, fmt.Errorf("overall reading phase failed: %w", err)
	}

	// Advice builds on a bounded excerpt of the overall reading.
	advice := defaultAdvice()
	if e.builder.Has(e.workflow.AdviceTemplate) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		var payload advicePayload
		err := e.generateSection(ctx, e.workflow.AdviceTemplate, prompts.ReadingData{
			Question:       req.Question,
			Language:       language,
			OverallSummary: truncateRunes(overall.OverallReading, summaryLimit),
		}, systemPrompt, TaskAdvice, PurposeAdvice, &payload, record)
		sem.Release(1)
		if err != nil {
			return nil, fmt.Errorf("advice phase failed: %w", err)
		}
		advice = payload.Advice
	}

	reading := &tarot.ReadingResponse{
		Cards:             make([]tarot.CardInterpretation, len(interpretations)),
		CardRelationships: relationships,
		OverallReading:    formatCitations(overall.OverallReading, spread.Positions),
		Advice:            advice,
		Summary:           overall.Summary,
	}
	for i, ci := range interpretations {
		reading.Cards[i] = *ci
	}

	if err := Validate(reading, spread, RulesForSpread(spread.Type)); err != nil {
		return nil, err
	}

	result.Reading = reading
	return result, nil
}

// generateCardBatch interprets one batch of cards, retrying with a larger
// output budget when the response comes back truncated.
func (e *ParallelEngine) generateCardBatch(ctx context.Context, question, contextText, systemPrompt string, translated []prompts.CardPromptContext, batch []int, record func(*llms.OrchestratorResponse, Purpose)) ([]tarot.CardInterpretation, error) {
	batchCards := make([]prompts.CardPromptContext, len(batch))
	for i, idx := range batch {
		batchCards[i] = translated[idx]
	}

	prompt, err := e.builder.Render(e.workflow.CardTemplate, prompts.ReadingData{
		Question: question,
		Context:  contextText,
		Cards:    batchCards,
	})
	if err != nil {
		return nil, err
	}

	alloc, _ := e.allocator.AllocateFor(AnalyzeRequest{
		Prompt:         prompt,
		SystemPrompt:   systemPrompt,
		Task:           TaskCardInterpretation,
		NumCards:       len(batch),
		QuestionLength: utf8.RuneCountInString(question),
		RAGChars:       len(contextText),
	})

	for attempt := 0; ; attempt++ {
		cfg := alloc.Config
		resp, err := e.orch.Generate(ctx, &llms.GenerateRequest{
			Prompt:       prompt,
			SystemPrompt: systemPrompt,
			Model:        alloc.Model,
			Config:       &cfg,
		})
		if err != nil {
			return nil, err
		}

		purpose := PurposeCardBatch
		if attempt > 0 {
			purpose = PurposeParseRetry
		}
		record(resp, purpose)

		var payload batchPayload
		err = ParseInto(resp.Primary.Content, resp.Primary.FinishReason, &payload)
		if err == nil {
			return payload.Cards, nil
		}

		ee, ok := AsExtractionError(err)
		if !ok || !ee.Truncated || attempt >= e.maxParseRetries {
			return nil, err
		}

		grown := alloc.Config.MaxTokens * 3 / 2
		if ceiling := e.allocator.TokenCeiling(resp.Primary.Model); grown > ceiling {
			grown = ceiling
		}
		alloc.Config.MaxTokens = grown
		slog.Warn("Card batch truncated, retrying with larger output budget",
			"attempt", attempt+1,
			"max_tokens", grown)
	}
}

// generateSection runs one Phase-2 call with truncation retries and
// unmarshals its payload into out.
func (e *ParallelEngine) generateSection(ctx context.Context, templateName string, data prompts.ReadingData, systemPrompt string, task TaskType, purpose Purpose, out any, record func(*llms.OrchestratorResponse, Purpose)) error {
	prompt, err := e.builder.Render(templateName, data)
	if err != nil {
		return err
	}

	alloc, _ := e.allocator.AllocateFor(AnalyzeRequest{
		Prompt:         prompt,
		SystemPrompt:   systemPrompt,
		Task:           task,
		NumCards:       len(data.Cards),
		QuestionLength: utf8.RuneCountInString(data.Question),
		RAGChars:       len(data.Context),
	})

	for attempt := 0; ; attempt++ {
		cfg := alloc.Config
		resp, err := e.orch.Generate(ctx, &llms.GenerateRequest{
			Prompt:       prompt,
			SystemPrompt: systemPrompt,
			Model:        alloc.Model,
			Config:       &cfg,
		})
		if err != nil {
			return err
		}

		p := purpose
		if attempt > 0 {
			p = PurposeParseRetry
		}
		record(resp, p)

		err = ParseInto(resp.Primary.Content, resp.Primary.FinishReason, out)
		if err == nil {
			return nil
		}

		ee, ok := AsExtractionError(err)
		if !ok || !ee.Truncated || attempt >= e.maxParseRetries {
			return err
		}

		grown := alloc.Config.MaxTokens * 3 / 2
		if ceiling := e.allocator.TokenCeiling(resp.Primary.Model); grown > ceiling {
			grown = ceiling
		}
		alloc.Config.MaxTokens = grown
	}
}

// batchIndices partitions [0,n) into consecutive batches of size.
func batchIndices(n, size int) [][]int {
	if size < 1 {
		size = 1
	}
	var out [][]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, i)
		}
		out = append(out, batch)
	}
	return out
}

func indexInBatch(batch []int, idx int) bool {
	for _, i := range batch {
		if i == idx {
			return true
		}
	}
	return false
}

func positionIndex(positions []string, position string) int {
	for i, p := range positions {
		if p == position {
			return i
		}
	}
	return -1
}

// formatCitations rewrites [position_key] citations in the overall
// reading to the canonical Korean position names.
func formatCitations(text string, positions []string) string {
	for _, p := range positions {
		text = strings.ReplaceAll(text, "["+p+"]", "["+prompts.PositionNameKo(p)+"]")
	}
	return text
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// defaultRelationships is the fallback when no relationships template is
// configured.
const defaultRelationships = "카드들은 서로 독립적으로 해석되었으며, 전체 리딩에서 그 흐름이 종합되었습니다."

// defaultAdvice is the fallback when no advice template is configured.
func defaultAdvice() tarot.Advice {
	return tarot.Advice{
		ImmediateAction: "오늘은 리딩에서 드러난 현재 상황을 있는 그대로 받아들이고, 작은 한 걸음부터 시작해 보세요.",
		ShortTerm:       "앞으로 몇 주간은 카드가 보여준 흐름을 염두에 두고, 서두르지 말고 차분히 방향을 조정해 나가세요.",
		Mindset:         "결과에 집착하기보다 과정에서 배우는 자세를 유지하세요.",
	}
}
