package config

import "fmt"

// SettingsConfig is the administrative settings plane the orchestrator
// singleton is built from. It is read-only to the core at runtime; the
// admin surface mutates it and invalidates the orchestrator cache.
type SettingsConfig struct {
	// ProviderPriority orders providers; index 0 is the primary.
	ProviderPriority []string `yaml:"provider_priority,omitempty"`

	// Providers configures each adapter, keyed by Type.
	Providers []LLMProviderConfig `yaml:"providers,omitempty"`

	// DefaultTimeout in seconds applied when a provider omits one.
	DefaultTimeout int `yaml:"default_timeout,omitempty"`
}

func (c *SettingsConfig) SetDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 30
	}
	for i := range c.Providers {
		if c.Providers[i].Timeout == 0 {
			c.Providers[i].Timeout = c.DefaultTimeout
		}
		c.Providers[i].SetDefaults()
	}
	if len(c.ProviderPriority) == 0 {
		for _, p := range c.Providers {
			c.ProviderPriority = append(c.ProviderPriority, p.Type)
		}
	}
}

func (c *SettingsConfig) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if !p.IsEnabled() {
			continue
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.Type, err)
		}
		if seen[p.Type] {
			return fmt.Errorf("duplicate provider %q", p.Type)
		}
		seen[p.Type] = true
	}
	for _, name := range c.ProviderPriority {
		if name == "" {
			return fmt.Errorf("provider_priority contains an empty name")
		}
	}
	return nil
}

// OrderedProviders returns enabled provider configs in priority order.
// Providers named in the priority list but not configured are skipped.
func (c *SettingsConfig) OrderedProviders() []LLMProviderConfig {
	byType := make(map[string]LLMProviderConfig, len(c.Providers))
	for _, p := range c.Providers {
		if p.IsEnabled() {
			byType[p.Type] = p
		}
	}

	ordered := make([]LLMProviderConfig, 0, len(byType))
	for _, name := range c.ProviderPriority {
		if p, ok := byType[name]; ok {
			ordered = append(ordered, p)
			delete(byType, name)
		}
	}
	// Configured providers missing from the priority list go last,
	// in declaration order.
	for _, p := range c.Providers {
		if rem, ok := byType[p.Type]; ok {
			ordered = append(ordered, rem)
			delete(byType, p.Type)
		}
	}
	return ordered
}
