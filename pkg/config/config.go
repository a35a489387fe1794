// Package config defines the configuration surface of arcanum.
// Each concern has its own file with SetDefaults and Validate methods,
// loaded from YAML with ${ENV_VAR} expansion.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Settings SettingsConfig `yaml:"settings,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
	RAG      RAGConfig      `yaml:"rag,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Reading  ReadingConfig  `yaml:"reading,omitempty"`
	Logger   LoggerConfig   `yaml:"logger,omitempty"`
}

// LoggerConfig configures logging output.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Load reads a YAML config file, expands ${ENV} references, applies
// defaults, and validates. A missing path yields the default config.
func Load(path string) (*Config, error) {
	// .env is optional; keys already in the environment win.
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.Expand(string(data), func(key string) string {
			return os.Getenv(key)
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Settings.SetDefaults()
	c.Cache.SetDefaults()
	c.RAG.SetDefaults()
	c.Database.SetDefaults()
	c.Reading.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
