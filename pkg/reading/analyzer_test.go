package reading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcanum-labs/arcanum/pkg/llms"
)

func TestAnalyze_OutputScalesWithCards(t *testing.T) {
	one := Analyze(AnalyzeRequest{Task: TaskCardInterpretation, NumCards: 1, Prompt: "p"})
	three := Analyze(AnalyzeRequest{Task: TaskCardInterpretation, NumCards: 3, Prompt: "p"})

	assert.Equal(t, 400, one.EstOutputTokens)
	assert.Equal(t, 1200, three.EstOutputTokens)
}

func TestAnalyze_LongQuestionGrowsOutput(t *testing.T) {
	base := Analyze(AnalyzeRequest{Task: TaskAdvice, Prompt: "p"})
	long := Analyze(AnalyzeRequest{Task: TaskAdvice, Prompt: "p", QuestionLength: 250})

	assert.Greater(t, long.EstOutputTokens, base.EstOutputTokens)
	assert.Equal(t, base.EstOutputTokens*13/10, long.EstOutputTokens)
}

func TestAnalyze_RAGDiscountShrinksInputEstimate(t *testing.T) {
	prompt := strings.Repeat("x", 3000)
	plain := Analyze(AnalyzeRequest{Task: TaskAdvice, Prompt: prompt})
	discounted := Analyze(AnalyzeRequest{Task: TaskAdvice, Prompt: prompt, RAGChars: 2000})

	assert.Less(t, discounted.EstInputTokens, plain.EstInputTokens)
}

func TestAnalyze_OverallReadingRequiresHighQuality(t *testing.T) {
	a := Analyze(AnalyzeRequest{Task: TaskOverallReading, Prompt: "p"})
	assert.True(t, a.RequiresHighQuality)
	assert.Equal(t, []llms.ModelTier{llms.TierHigh, llms.TierBalanced}, a.SuitableTiers)
}

func TestAnalyze_SimpleCallRoutesFast(t *testing.T) {
	a := Analyze(AnalyzeRequest{Task: TaskAdvice, Prompt: "short", NumCards: 1})
	assert.Less(t, a.Complexity, 0.3)
	assert.Equal(t, []llms.ModelTier{llms.TierFast, llms.TierBalanced}, a.SuitableTiers)
	assert.Equal(t, UrgencyLow, a.Urgency)
}

func TestAnalyze_ComplexityClamped(t *testing.T) {
	a := Analyze(AnalyzeRequest{
		Task:           TaskCardInterpretation,
		NumCards:       30,
		Prompt:         strings.Repeat("x", 6000),
		QuestionLength: 300,
		RAGChars:       1000,
		Category:       "love",
	})
	assert.Equal(t, 1.0, a.Complexity)
	assert.Equal(t, UrgencyHigh, a.Urgency)
	assert.True(t, a.RequiresHighQuality)
}
