package config

import "fmt"

// DatabaseConfig selects the persistence backend at boot.
type DatabaseConfig struct {
	// Type selects the provider: sqlite, postgres, or document.
	Type string `yaml:"type,omitempty"`

	// DSN for sql backends (file path for sqlite, connection string for
	// postgres).
	DSN string `yaml:"dsn,omitempty"`

	// Path is the data directory for the document backend.
	Path string `yaml:"path,omitempty"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "sqlite"
	}
	if c.Type == "sqlite" && c.DSN == "" {
		c.DSN = ".arcanum/arcanum.db"
	}
	if c.Type == "document" && c.Path == "" {
		c.Path = ".arcanum/documents"
	}
}

func (c *DatabaseConfig) Validate() error {
	switch c.Type {
	case "sqlite", "postgres", "document":
	default:
		return fmt.Errorf("invalid database type %q (valid: sqlite, postgres, document)", c.Type)
	}
	if c.Type == "postgres" && c.DSN == "" {
		return fmt.Errorf("dsn is required for postgres")
	}
	return nil
}
