package reading

import (
	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// TaskType names the role of one LLM call within a reading.
type TaskType string

const (
	TaskCardInterpretation TaskType = "card_interpretation"
	TaskOverallReading     TaskType = "overall_reading"
	TaskRelationships      TaskType = "relationships"
	TaskAdvice             TaskType = "advice"
)

// Urgency grades how latency-sensitive a call is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// charsPerToken is the rough multilingual chars-per-token heuristic used
// for input sizing.
const charsPerToken = 3

// Output-token baselines per task. Card interpretation is per card.
var baseOutputTokens = map[TaskType]int{
	TaskCardInterpretation: 400,
	TaskOverallReading:     2000,
	TaskRelationships:      800,
	TaskAdvice:             600,
}

// AnalyzeRequest describes one candidate LLM call.
type AnalyzeRequest struct {
	Prompt       string
	SystemPrompt string
	Task         TaskType
	NumCards     int

	// QuestionLength is the questioner's raw question length in runes.
	QuestionLength int

	// RAGChars counts the structured context portion of the prompt; its
	// token estimate is discounted because templated context compresses
	// better than prose.
	RAGChars int

	Category string
}

// Analysis is the analyzer's verdict, consumed by the allocator.
type Analysis struct {
	EstInputTokens      int
	EstOutputTokens     int
	Complexity          float64
	Urgency             Urgency
	RequiresHighQuality bool
	SuitableTiers       []llms.ModelTier
}

// Analyze sizes and grades a candidate call.
func Analyze(req AnalyzeRequest) Analysis {
	promptLen := len(req.Prompt) + len(req.SystemPrompt)

	// Structured RAG context tokenizes denser than prose; discount it.
	effectiveChars := promptLen - req.RAGChars/4
	if effectiveChars < 0 {
		effectiveChars = 0
	}
	inputTokens := effectiveChars / charsPerToken

	output := baseOutputTokens[req.Task]
	if output == 0 {
		output = 1000
	}
	if req.Task == TaskCardInterpretation && req.NumCards > 1 {
		output *= req.NumCards
	}

	switch {
	case req.QuestionLength > 200:
		output = output * 13 / 10
	case req.QuestionLength > 100:
		output = output * 115 / 100
	}
	switch {
	case promptLen > 5000:
		output = output * 12 / 10
	case promptLen > 3000:
		output = output * 11 / 10
	}

	complexity := analyzeComplexity(req, promptLen)

	a := Analysis{
		EstInputTokens:      inputTokens,
		EstOutputTokens:     output,
		Complexity:          complexity,
		Urgency:             urgencyFor(complexity),
		RequiresHighQuality: req.Task == TaskOverallReading || complexity >= 0.7,
	}
	a.SuitableTiers = tiersFor(a)
	return a
}

func analyzeComplexity(req AnalyzeRequest, promptLen int) float64 {
	var c float64
	c += float64(req.NumCards) * 0.05
	if req.QuestionLength > 100 {
		c += 0.15
	}
	if promptLen > 3000 {
		c += 0.15
	}
	if req.Category != "" {
		c += 0.1
	}
	if req.RAGChars > 0 {
		c += 0.1
	}
	if c > 1 {
		c = 1
	}
	return c
}

func urgencyFor(complexity float64) Urgency {
	switch {
	case complexity > 0.75:
		return UrgencyHigh
	case complexity > 0.4:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func tiersFor(a Analysis) []llms.ModelTier {
	switch {
	case a.RequiresHighQuality:
		return []llms.ModelTier{llms.TierHigh, llms.TierBalanced}
	case a.Complexity < 0.3:
		return []llms.ModelTier{llms.TierFast, llms.TierBalanced}
	default:
		return []llms.ModelTier{llms.TierBalanced, llms.TierHigh}
	}
}
