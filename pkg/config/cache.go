package config

// CacheConfig configures the redis-backed response cache.
type CacheConfig struct {
	// Enabled gates the cache wholesale. When false (or when redis is
	// unreachable at boot) the orchestrator runs uncached.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Addr is the redis address (host:port).
	Addr string `yaml:"addr,omitempty"`

	// Password for redis AUTH.
	Password string `yaml:"password,omitempty"`

	// DB is the redis database index.
	DB int `yaml:"db,omitempty"`

	// TTLHours is the default entry lifetime.
	TTLHours int `yaml:"ttl_hours,omitempty"`

	// Prefix namespaces all cache keys.
	Prefix string `yaml:"prefix,omitempty"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTLHours == 0 {
		c.TTLHours = 24
	}
	if c.Prefix == "" {
		c.Prefix = "arcanum:ai_response:"
	}
}

// IsEnabled reports whether caching is requested.
func (c *CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
