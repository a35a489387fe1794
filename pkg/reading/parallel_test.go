package reading

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// cardLinePattern matches one rendered card line in the Celtic Cross
// prompts, capturing the position key and card id.
var cardLinePattern = regexp.MustCompile(`\[([a-z_]+) \([^)]*\)\] .*card_id (\d+)`)

// phaseGenerator answers each pipeline phase by recognizing its prompt,
// echoing back the cards the prompt asked about.
type phaseGenerator struct {
	fakeGenerator

	batchCardCounts []int
	advicePrompt    string

	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	perCallDelay  time.Duration
	dropFirstCard bool

	// echoAllPositions makes every card batch answer with all ten
	// canonical positions, tagged with the batch that produced them.
	echoAllPositions bool
}

func newPhaseGenerator(t *testing.T) *phaseGenerator {
	t.Helper()
	g := &phaseGenerator{}
	var mu sync.Mutex
	g.respond = func(req *llms.GenerateRequest, call int) (*llms.OrchestratorResponse, error) {
		cur := g.inFlight.Add(1)
		for {
			max := g.maxInFlight.Load()
			if cur <= max || g.maxInFlight.CompareAndSwap(max, cur) {
				break
			}
		}
		if g.perCallDelay > 0 {
			time.Sleep(g.perCallDelay)
		}
		defer g.inFlight.Add(-1)

		switch {
		case strings.Contains(req.Prompt, "Interpret only the cards"):
			matches := cardLinePattern.FindAllStringSubmatch(req.Prompt, -1)
			require.NotEmpty(t, matches, "card batch prompt lists no cards")
			mu.Lock()
			g.batchCardCounts = append(g.batchCardCounts, len(matches))
			mu.Unlock()

			var payload batchPayload
			if g.echoAllPositions {
				spread, err := tarot.GetSpread(tarot.SpreadCelticCross)
				require.NoError(t, err)
				for _, pos := range spread.Positions {
					payload.Cards = append(payload.Cards, tarot.CardInterpretation{
						Position:       pos,
						Interpretation: koreanText(120) + " batch:" + matches[0][1],
						KeyMessage:     koreanText(10),
					})
				}
				return jsonResponse(t, payload), nil
			}
			for i, m := range matches {
				if g.dropFirstCard && i == 0 {
					continue
				}
				id, err := strconv.Atoi(m[2])
				require.NoError(t, err)
				payload.Cards = append(payload.Cards, tarot.CardInterpretation{
					CardID:         id,
					Position:       m[1],
					Interpretation: koreanText(120),
					KeyMessage:     koreanText(10),
				})
			}
			return jsonResponse(t, payload), nil

		case strings.Contains(req.Prompt, "Write the overall reading"):
			return jsonResponse(t, overallPayload{
				OverallReading: koreanText(350) + " [present_situation]",
				Summary:        koreanText(40),
			}), nil

		case strings.Contains(req.Prompt, "how the cards interact"):
			return jsonResponse(t, relationshipsPayload{CardRelationships: koreanText(100)}), nil

		case strings.Contains(req.Prompt, "give the questioner concrete advice"):
			mu.Lock()
			g.advicePrompt = req.Prompt
			mu.Unlock()
			return jsonResponse(t, advicePayload{Advice: tarot.Advice{
				ImmediateAction: koreanText(40),
				ShortTerm:       koreanText(40),
				Mindset:         koreanText(20),
			}}), nil
		}
		return nil, fmt.Errorf("unrecognized prompt: %s", req.Prompt)
	}
	return g
}

func jsonResponse(t *testing.T, payload any) *llms.OrchestratorResponse {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return orchResponse(string(raw), llms.FinishStop)
}

func newTestParallelEngine(t *testing.T, gen *phaseGenerator, cfg *config.ReadingConfig) *ParallelEngine {
	t.Helper()
	builder, enricher, shuffler, allocator := testEngineDeps(t)
	return NewParallelEngine(gen, enricher, builder, shuffler, allocator, CelticCrossWorkflow(), cfg)
}

func countPurposes(usage []UsageLog) map[Purpose]int {
	out := map[Purpose]int{}
	for _, u := range usage {
		out[u.Purpose]++
	}
	return out
}

func TestParallelEngine_FullCelticCross(t *testing.T) {
	gen := newPhaseGenerator(t)
	engine := newTestParallelEngine(t, gen, nil)

	result, err := engine.Generate(context.Background(), &Request{
		Question:   "올해 커리어는 어떻게 풀릴까요?",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.NoError(t, err)

	spread, err := tarot.GetSpread(tarot.SpreadCelticCross)
	require.NoError(t, err)

	require.NotNil(t, result.Reading)
	require.Len(t, result.Reading.Cards, 10)
	for i, ci := range result.Reading.Cards {
		assert.Equal(t, spread.Positions[i], ci.Position, "cards come back in canonical position order")
	}

	// The overall reading's position citations become Korean names.
	assert.Contains(t, result.Reading.OverallReading, "[현재 상황]")
	assert.NotContains(t, result.Reading.OverallReading, "[present_situation]")
	assert.NotEmpty(t, result.Reading.CardRelationships)
	assert.NotEmpty(t, result.Reading.Summary)
	assert.NotEmpty(t, result.Reading.Advice.ImmediateAction)

	// Ten cards in batches of three, then overall, relationships, advice.
	assert.ElementsMatch(t, []int{3, 3, 3, 1}, gen.batchCardCounts)
	assert.Equal(t, map[Purpose]int{
		PurposeCardBatch:      4,
		PurposeOverallReading: 1,
		PurposeRelationships:  1,
		PurposeAdvice:         1,
	}, countPurposes(result.Usage))
	assert.Len(t, result.Attempts, 7)

	// Advice sees the raw overall reading, before citation rewriting.
	assert.Contains(t, gen.advicePrompt, "[present_situation]")
}

func TestParallelEngine_MissingPositionFailsValidation(t *testing.T) {
	gen := newPhaseGenerator(t)
	gen.dropFirstCard = true
	engine := newTestParallelEngine(t, gen, nil)

	_, err := engine.Generate(context.Background(), &Request{
		Question:   "질문",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.Error(t, err)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "cards", ve.Field)
}

func TestParallelEngine_DropsPositionsFromOtherBatches(t *testing.T) {
	gen := newPhaseGenerator(t)
	gen.echoAllPositions = true
	gen.perCallDelay = 10 * time.Millisecond
	engine := newTestParallelEngine(t, gen, nil)

	result, err := engine.Generate(context.Background(), &Request{
		Question:   "질문",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.NoError(t, err)

	spread, err := tarot.GetSpread(tarot.SpreadCelticCross)
	require.NoError(t, err)

	// Each position must carry its own batch's interpretation even when
	// every batch claims all ten positions concurrently.
	require.Len(t, result.Reading.Cards, 10)
	for i, ci := range result.Reading.Cards {
		owner := spread.Positions[(i/3)*3]
		assert.Contains(t, ci.Interpretation, "batch:"+owner,
			"position %s interpreted by a foreign batch", ci.Position)
	}
}

func TestParallelEngine_RespectsConcurrencyCap(t *testing.T) {
	gen := newPhaseGenerator(t)
	gen.perCallDelay = 10 * time.Millisecond
	engine := newTestParallelEngine(t, gen, &config.ReadingConfig{
		MaxParseRetries: 2,
		BatchSize:       2,
		MaxConcurrency:  2,
	})

	_, err := engine.Generate(context.Background(), &Request{
		Question:   "질문",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{2, 2, 2, 2, 2}, gen.batchCardCounts)
	assert.LessOrEqual(t, gen.maxInFlight.Load(), int32(2))
}

func TestParallelEngine_MissingTemplatesFallBack(t *testing.T) {
	gen := newPhaseGenerator(t)
	builder, enricher, shuffler, allocator := testEngineDeps(t)
	workflow := CelticCrossWorkflow()
	workflow.RelationshipsTemplate = "reading/does_not_exist"
	workflow.AdviceTemplate = "reading/also_missing"
	engine := NewParallelEngine(gen, enricher, builder, shuffler, allocator, workflow, nil)

	result, err := engine.Generate(context.Background(), &Request{
		Question:   "질문",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.NoError(t, err)

	assert.Equal(t, defaultRelationships, result.Reading.CardRelationships)
	assert.Equal(t, defaultAdvice(), result.Reading.Advice)
	assert.Equal(t, map[Purpose]int{
		PurposeCardBatch:      4,
		PurposeOverallReading: 1,
	}, countPurposes(result.Usage))
}

func TestParallelEngine_BatchTruncationRetries(t *testing.T) {
	gen := newPhaseGenerator(t)
	inner := gen.respond
	var truncated atomic.Bool
	gen.respond = func(req *llms.GenerateRequest, call int) (*llms.OrchestratorResponse, error) {
		if strings.Contains(req.Prompt, "Interpret only the cards") && truncated.CompareAndSwap(false, true) {
			return orchResponse(`{"cards": [{"card_id": 0,`, llms.FinishMaxTokens), nil
		}
		return inner(req, call)
	}
	engine := newTestParallelEngine(t, gen, nil)

	result, err := engine.Generate(context.Background(), &Request{
		Question:   "질문",
		SpreadType: tarot.SpreadCelticCross,
		Cards:      drawnFor(t, tarot.SpreadCelticCross),
	})
	require.NoError(t, err)

	counts := countPurposes(result.Usage)
	assert.Equal(t, 4, counts[PurposeCardBatch])
	assert.Equal(t, 1, counts[PurposeParseRetry])
	assert.Len(t, result.Attempts, 8)
}

func TestBatchIndices(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9}}, batchIndices(10, 3))
	assert.Equal(t, [][]int{{0, 1}}, batchIndices(2, 5))
	assert.Empty(t, batchIndices(0, 3))
	// Degenerate size falls back to one card per batch.
	assert.Len(t, batchIndices(3, 0), 3)
}

func TestFormatCitations(t *testing.T) {
	spread, err := tarot.GetSpread(tarot.SpreadCelticCross)
	require.NoError(t, err)

	out := formatCitations("시작 [present_situation] 그리고 [final_outcome] 끝", spread.Positions)
	assert.NotContains(t, out, "present_situation")
	assert.NotContains(t, out, "final_outcome")
	assert.Contains(t, out, "[현재 상황]")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "가나다", truncateRunes("가나다", 5))
	assert.Equal(t, "가나", truncateRunes("가나다라마", 2))
	assert.Equal(t, "", truncateRunes("", 3))
}
