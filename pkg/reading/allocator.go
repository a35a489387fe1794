package reading

import (
	"github.com/arcanum-labs/arcanum/pkg/llms"
)

// Temperature per task. The overall reading runs warmer for narrative
// flow; relationship analysis runs cooler for precision.
var taskTemperature = map[TaskType]float64{
	TaskCardInterpretation: 0.7,
	TaskOverallReading:     0.75,
	TaskRelationships:      0.6,
	TaskAdvice:             0.7,
}

// Allocation is the allocator's pick for one call.
type Allocation struct {
	Model  string
	Config llms.GenerationConfig
}

// Allocator turns an Analysis into a concrete model and generation
// config, consulting the model registry.
type Allocator struct {
	registry *llms.ModelRegistry
}

// NewAllocator builds an allocator over a registry. A nil registry uses
// the process default.
func NewAllocator(registry *llms.ModelRegistry) *Allocator {
	if registry == nil {
		registry = llms.DefaultModelRegistry()
	}
	return &Allocator{registry: registry}
}

// Allocate picks a model matching the analysis's suitable tiers (first
// available wins; an empty registry leaves the model unset so the
// orchestrator routes to its default) and sizes max_tokens from the
// output estimate with 20% headroom, capped by the model's ceiling.
func (a *Allocator) Allocate(analysis Analysis) Allocation {
	cfg := llms.NewGenerationConfig()

	var model string
	for _, tier := range analysis.SuitableTiers {
		if candidates := a.registry.FindAvailable(llms.ModelFilter{Tier: tier}); len(candidates) > 0 {
			model = candidates[0].ModelID
			break
		}
	}

	maxTokens := analysis.EstOutputTokens * 12 / 10
	if maxTokens < 500 {
		maxTokens = 500
	}
	if ceiling := a.TokenCeiling(model); maxTokens > ceiling {
		maxTokens = ceiling
	}
	cfg.MaxTokens = maxTokens

	return Allocation{Model: model, Config: cfg}
}

// TokenCeiling is the hard output cap for a model: a quarter of its
// context window from the registry, bounded to 8192, with 4096 as the
// unknown-model fallback. Truncation retries never inflate past this.
func (a *Allocator) TokenCeiling(model string) int {
	const (
		defaultCeiling = 4096
		maxCeiling     = 8192
	)
	meta := a.registry.Get(model)
	if meta == nil || meta.MaxContextWindow <= 0 {
		return defaultCeiling
	}
	ceiling := meta.MaxContextWindow / 4
	if ceiling > maxCeiling {
		return maxCeiling
	}
	if ceiling < 1 {
		return defaultCeiling
	}
	return ceiling
}

// AllocateFor runs Analyze and Allocate in one step, applying the
// task-specific temperature.
func (a *Allocator) AllocateFor(req AnalyzeRequest) (Allocation, Analysis) {
	analysis := Analyze(req)
	alloc := a.Allocate(analysis)
	if t, ok := taskTemperature[req.Task]; ok {
		alloc.Config.Temperature = t
	}
	return alloc, analysis
}
