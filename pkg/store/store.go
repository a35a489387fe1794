// Package store persists readings, cards, and LLM usage logs behind a
// backend-agnostic DatabaseProvider. Two backends ship: a relational one
// over database/sql (sqlite or postgres) and a JSON-document one on the
// local filesystem.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// PersistedCard is one card of a stored reading, with a snapshot of the
// card's reference data at reading time.
type PersistedCard struct {
	CardID         int               `json:"card_id"`
	Position       string            `json:"position"`
	Orientation    tarot.Orientation `json:"orientation"`
	Interpretation string            `json:"interpretation"`
	KeyMessage     string            `json:"key_message"`
	CardSnapshot   tarot.Card        `json:"card_snapshot"`
}

// PersistedReading is the stored form of a finished reading.
type PersistedReading struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	SpreadType        string          `json:"spread_type"`
	Question          string          `json:"question"`
	Category          string          `json:"category,omitempty"`
	Cards             []PersistedCard `json:"cards"`
	CardRelationships string          `json:"card_relationships,omitempty"`
	OverallReading    string          `json:"overall_reading"`
	Advice            tarot.Advice    `json:"advice"`
	Summary           string          `json:"summary"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	LLMUsage          []LLMUsageLog   `json:"llm_usage,omitempty"`
}

// LLMUsageLog is one LLM call recorded against a reading.
type LLMUsageLog struct {
	ID               string          `json:"id"`
	ReadingID        string          `json:"reading_id"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	EstimatedCost    float64         `json:"estimated_cost"`
	LatencySeconds   float64         `json:"latency_seconds"`
	Purpose          reading.Purpose `json:"purpose"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CardFilters narrows GetCards. Zero fields are ignored.
type CardFilters struct {
	Arcana tarot.Arcana
	Suit   tarot.Suit
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

// DatabaseProvider is the persistence surface the pipeline depends on.
type DatabaseProvider interface {
	CreateReading(ctx context.Context, r *PersistedReading) (*PersistedReading, error)
	GetCardByID(ctx context.Context, id int) (*tarot.Card, error)
	GetCards(ctx context.Context, filters CardFilters, page Page) ([]tarot.Card, error)
	GetRandomCards(ctx context.Context, n int) ([]tarot.Card, error)
	CreateLLMUsageLog(ctx context.Context, log *LLMUsageLog) error
	Close() error
}

// NewFromConfig constructs the backend selected by the config.
func NewFromConfig(cfg *config.DatabaseConfig) (DatabaseProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}
	switch cfg.Type {
	case "sqlite", "postgres":
		return NewSQLProvider(cfg)
	case "document":
		return NewDocumentProvider(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: sqlite, postgres, document)", cfg.Type)
	}
}
