package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/llms"
)

func testRegistry() *llms.ModelRegistry {
	r := llms.NewModelRegistry()
	r.Register(llms.ModelMetadata{
		ModelID: "fast-model", Provider: "openai",
		Tier: llms.TierFast, MaxContextWindow: 16000, Available: true,
	})
	r.Register(llms.ModelMetadata{
		ModelID: "balanced-model", Provider: "openai",
		Tier: llms.TierBalanced, MaxContextWindow: 128000, Available: true,
	})
	r.Register(llms.ModelMetadata{
		ModelID: "high-model", Provider: "anthropic",
		Tier: llms.TierHigh, MaxContextWindow: 200000, Available: true,
	})
	return r
}

func TestAllocate_FirstSuitableTierWins(t *testing.T) {
	a := NewAllocator(testRegistry())

	alloc := a.Allocate(Analysis{
		EstOutputTokens: 1000,
		SuitableTiers:   []llms.ModelTier{llms.TierHigh, llms.TierBalanced},
	})
	assert.Equal(t, "high-model", alloc.Model)
	assert.Equal(t, 1200, alloc.Config.MaxTokens, "estimate plus 20% headroom")
}

func TestAllocate_FallsThroughMissingTiers(t *testing.T) {
	r := llms.NewModelRegistry()
	r.Register(llms.ModelMetadata{
		ModelID: "only-balanced", Provider: "openai",
		Tier: llms.TierBalanced, MaxContextWindow: 128000, Available: true,
	})
	a := NewAllocator(r)

	alloc := a.Allocate(Analysis{
		EstOutputTokens: 1000,
		SuitableTiers:   []llms.ModelTier{llms.TierHigh, llms.TierBalanced},
	})
	assert.Equal(t, "only-balanced", alloc.Model)
}

func TestAllocate_EmptyRegistryLeavesModelUnset(t *testing.T) {
	a := NewAllocator(llms.NewModelRegistry())

	alloc := a.Allocate(Analysis{
		EstOutputTokens: 1000,
		SuitableTiers:   []llms.ModelTier{llms.TierBalanced},
	})
	assert.Empty(t, alloc.Model, "orchestrator routes to its default model")
	assert.Equal(t, 1200, alloc.Config.MaxTokens)
}

func TestAllocate_FloorAndCeiling(t *testing.T) {
	a := NewAllocator(testRegistry())

	small := a.Allocate(Analysis{
		EstOutputTokens: 100,
		SuitableTiers:   []llms.ModelTier{llms.TierFast},
	})
	assert.Equal(t, 500, small.Config.MaxTokens, "floor")

	huge := a.Allocate(Analysis{
		EstOutputTokens: 50000,
		SuitableTiers:   []llms.ModelTier{llms.TierFast},
	})
	assert.Equal(t, 4000, huge.Config.MaxTokens, "capped at window/4")
}

func TestTokenCeiling(t *testing.T) {
	a := NewAllocator(testRegistry())

	// window/4 within bounds.
	assert.Equal(t, 4000, a.TokenCeiling("fast-model"))
	// window/4 above the hard cap.
	assert.Equal(t, 8192, a.TokenCeiling("balanced-model"))
	assert.Equal(t, 8192, a.TokenCeiling("high-model"))
	// Unknown model falls back.
	assert.Equal(t, 4096, a.TokenCeiling("mystery-model"))
	assert.Equal(t, 4096, a.TokenCeiling(""))
}

func TestAllocateFor_AppliesTaskTemperature(t *testing.T) {
	a := NewAllocator(testRegistry())

	alloc, analysis := a.AllocateFor(AnalyzeRequest{
		Task:   TaskRelationships,
		Prompt: "p",
	})
	require.NotZero(t, analysis.EstOutputTokens)
	assert.Equal(t, 0.6, alloc.Config.Temperature)

	alloc, _ = a.AllocateFor(AnalyzeRequest{Task: TaskOverallReading, Prompt: "p"})
	assert.Equal(t, 0.75, alloc.Config.Temperature)
}
