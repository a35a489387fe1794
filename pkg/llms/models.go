package llms

import (
	"strings"
	"sync"
)

// ModelTier ranks models by capability.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierBalanced ModelTier = "balanced"
	TierHigh     ModelTier = "high"
)

// TaskLength classifies output sizes a model is suitable for.
type TaskLength string

const (
	TaskShort   TaskLength = "short"
	TaskMedium  TaskLength = "medium"
	TaskLong    TaskLength = "long"
	TaskComplex TaskLength = "complex"
)

// ModelMetadata is one registry entry.
type ModelMetadata struct {
	ModelID          string       `json:"model_id"`
	Provider         string       `json:"provider"`
	DisplayName      string       `json:"display_name"`
	CostPer1MInput   float64      `json:"cost_per_1m_input"`
	CostPer1MOutput  float64      `json:"cost_per_1m_output"`
	MaxContextWindow int          `json:"max_context_window"`
	Tier             ModelTier    `json:"tier"`
	SuitableFor      []TaskLength `json:"suitable_for"`
	Available        bool         `json:"available"`
}

// SuitableFor reports whether the model suits the given task length.
func (m *ModelMetadata) Suits(length TaskLength) bool {
	for _, l := range m.SuitableFor {
		if l == length {
			return true
		}
	}
	return false
}

// ModelFilter narrows ModelRegistry.Find results. Zero fields are
// ignored; AvailableOnly defaults to true via FindAvailable.
type ModelFilter struct {
	Provider      string
	Tier          ModelTier
	MaxInputCost  float64
	MaxOutputCost float64
	SuitableFor   TaskLength
	AvailableOnly bool
}

// ModelRegistry is the process-wide model metadata catalog. Append-only
// after boot.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]*ModelMetadata
	order  []string
}

var (
	defaultModelRegistry *ModelRegistry
	modelRegistryOnce    sync.Once
)

// DefaultModelRegistry returns the lazily-initialized global registry.
func DefaultModelRegistry() *ModelRegistry {
	modelRegistryOnce.Do(func() {
		defaultModelRegistry = NewModelRegistry()
	})
	return defaultModelRegistry
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*ModelMetadata)}
}

// Register adds or replaces a metadata entry.
func (r *ModelRegistry) Register(meta ModelMetadata) {
	if meta.Tier == "" {
		meta.Tier = TierForModel(meta.ModelID)
	}
	if len(meta.SuitableFor) == 0 {
		meta.SuitableFor = suitableForTier(meta.Tier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[meta.ModelID]; !exists {
		r.order = append(r.order, meta.ModelID)
	}
	r.models[meta.ModelID] = &meta
}

// PopulateFromProvider registers every model an adapter exposes, with the
// adapter's pricing and context-window tables.
func (r *ModelRegistry) PopulateFromProvider(p Provider) {
	for _, id := range p.AvailableModels() {
		in, out := p.Pricing(id)
		r.Register(ModelMetadata{
			ModelID:          id,
			Provider:         p.Name(),
			DisplayName:      id,
			CostPer1MInput:   in,
			CostPer1MOutput:  out,
			MaxContextWindow: p.ContextWindow(id),
			Available:        true,
		})
	}
}

// Get returns a model's metadata, or nil when unknown.
func (r *ModelRegistry) Get(modelID string) *ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[modelID]
}

// Find returns models matching the filter, in registration order.
func (r *ModelRegistry) Find(filter ModelFilter) []*ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ModelMetadata
	for _, id := range r.order {
		m := r.models[id]
		if filter.AvailableOnly && !m.Available {
			continue
		}
		if filter.Provider != "" && m.Provider != filter.Provider {
			continue
		}
		if filter.Tier != "" && m.Tier != filter.Tier {
			continue
		}
		if filter.MaxInputCost > 0 && m.CostPer1MInput > filter.MaxInputCost {
			continue
		}
		if filter.MaxOutputCost > 0 && m.CostPer1MOutput > filter.MaxOutputCost {
			continue
		}
		if filter.SuitableFor != "" && !m.Suits(filter.SuitableFor) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FindAvailable is Find with AvailableOnly forced on.
func (r *ModelRegistry) FindAvailable(filter ModelFilter) []*ModelMetadata {
	filter.AvailableOnly = true
	return r.Find(filter)
}

// ProviderModels returns all models registered for one provider.
func (r *ModelRegistry) ProviderModels(provider string) []*ModelMetadata {
	return r.Find(ModelFilter{Provider: provider})
}

// TierForModel derives a tier from the model id.
func TierForModel(modelID string) ModelTier {
	id := strings.ToLower(modelID)
	for _, marker := range []string{"haiku", "flash", "mini", "nano", "turbo"} {
		if strings.Contains(id, marker) {
			return TierFast
		}
	}
	for _, marker := range []string{"opus", "pro", "-5", "4.1"} {
		if strings.Contains(id, marker) {
			return TierHigh
		}
	}
	return TierBalanced
}

func suitableForTier(tier ModelTier) []TaskLength {
	switch tier {
	case TierFast:
		return []TaskLength{TaskShort, TaskMedium}
	case TierHigh:
		return []TaskLength{TaskMedium, TaskLong, TaskComplex}
	default:
		return []TaskLength{TaskShort, TaskMedium, TaskLong}
	}
}
