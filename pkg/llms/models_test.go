package llms

import (
	"testing"
)

func TestModelRegistry_FindByTier(t *testing.T) {
	r := NewModelRegistry()
	r.Register(ModelMetadata{ModelID: "gpt-4o-mini", Provider: "openai", Available: true})
	r.Register(ModelMetadata{ModelID: "gpt-4o", Provider: "openai", Available: true})
	r.Register(ModelMetadata{ModelID: "claude-opus-4", Provider: "anthropic", Available: false})

	fast := r.FindAvailable(ModelFilter{Tier: TierFast})
	if len(fast) != 1 || fast[0].ModelID != "gpt-4o-mini" {
		t.Errorf("FindAvailable(fast) = %+v, want gpt-4o-mini", fast)
	}

	// Unavailable models never come back through FindAvailable.
	high := r.FindAvailable(ModelFilter{Tier: TierHigh})
	if len(high) != 0 {
		t.Errorf("FindAvailable(high) = %+v, want empty", high)
	}
}

func TestModelRegistry_RegistrationOrderStable(t *testing.T) {
	r := NewModelRegistry()
	r.Register(ModelMetadata{ModelID: "b-model", Provider: "openai", Tier: TierBalanced, Available: true})
	r.Register(ModelMetadata{ModelID: "a-model", Provider: "openai", Tier: TierBalanced, Available: true})

	got := r.Find(ModelFilter{Tier: TierBalanced})
	if len(got) != 2 || got[0].ModelID != "b-model" {
		t.Errorf("Find() order = %+v, want registration order", got)
	}
}

func TestTierForModel(t *testing.T) {
	tests := []struct {
		model string
		want  ModelTier
	}{
		{"claude-3-5-haiku-20241022", TierFast},
		{"gemini-2.0-flash", TierFast},
		{"gpt-4o-mini", TierFast},
		{"claude-opus-4-20250514", TierHigh},
		{"gemini-1.5-pro", TierHigh},
		{"gpt-4o", TierBalanced},
	}
	for _, tt := range tests {
		if got := TierForModel(tt.model); got != tt.want {
			t.Errorf("TierForModel(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestModelMetadata_DerivedDefaults(t *testing.T) {
	r := NewModelRegistry()
	r.Register(ModelMetadata{ModelID: "gemini-2.0-flash", Provider: "gemini", Available: true})

	meta := r.Get("gemini-2.0-flash")
	if meta == nil {
		t.Fatal("Get() returned nil for a registered model")
	}
	if meta.Tier != TierFast {
		t.Errorf("Tier = %v, want fast (derived from id)", meta.Tier)
	}
	if !meta.Suits(TaskShort) {
		t.Error("fast tier should suit short tasks")
	}
	if meta.Suits(TaskComplex) {
		t.Error("fast tier should not suit complex tasks")
	}
}

func TestLongestPrefixMatch(t *testing.T) {
	table := map[string]int{"gpt-4": 1, "gpt-4-turbo": 2}

	if got, ok := longestPrefixMatch(table, "gpt-4-turbo-preview"); !ok || got != 2 {
		t.Errorf("longestPrefixMatch = %v/%v, want 2/true", got, ok)
	}
	if got, ok := longestPrefixMatch(table, "gpt-4o"); !ok || got != 1 {
		t.Errorf("longestPrefixMatch = %v/%v, want 1/true", got, ok)
	}
	if _, ok := longestPrefixMatch(table, "claude-3"); ok {
		t.Error("longestPrefixMatch matched an unrelated model")
	}
}
