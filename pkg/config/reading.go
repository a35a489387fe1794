package config

// ReadingConfig tunes the reading engines.
type ReadingConfig struct {
	// MaxParseRetries bounds truncation-driven re-generation attempts.
	MaxParseRetries int `yaml:"max_parse_retries,omitempty"`

	// BatchSize for Celtic Cross Phase-1 card batches.
	BatchSize int `yaml:"batch_size,omitempty"`

	// MaxConcurrency caps in-flight LLM calls across both Celtic Cross
	// phases.
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`

	// StreamTimeoutSeconds is the per-attempt deadline on the streaming
	// path, which must cover multi-phase Celtic Cross generation.
	StreamTimeoutSeconds int `yaml:"stream_timeout_seconds,omitempty"`

	// PromptOverrideDir, when set, overlays on-disk templates over the
	// embedded prompt set.
	PromptOverrideDir string `yaml:"prompt_override_dir,omitempty"`
}

func (c *ReadingConfig) SetDefaults() {
	if c.MaxParseRetries == 0 {
		c.MaxParseRetries = 2
	}
	if c.BatchSize == 0 {
		c.BatchSize = 3
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 5
	}
	if c.StreamTimeoutSeconds == 0 {
		c.StreamTimeoutSeconds = 90
	}
}
