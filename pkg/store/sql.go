package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Card payloads and advice are stored as JSON columns: readings are
// written once and read whole, so relational decomposition buys nothing.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS cards (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	name_ko TEXT NOT NULL DEFAULT '',
	arcana_type TEXT NOT NULL,
	suit TEXT NOT NULL DEFAULT '',
	number INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	spread_type TEXT NOT NULL,
	question TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	cards TEXT NOT NULL,
	card_relationships TEXT NOT NULL DEFAULT '',
	overall_reading TEXT NOT NULL,
	advice TEXT NOT NULL,
	summary TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_usage_logs (
	id TEXT PRIMARY KEY,
	reading_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	estimated_cost REAL NOT NULL,
	latency_seconds REAL NOT NULL,
	purpose TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_reading ON llm_usage_logs (reading_id);
`

// SQLProvider persists through database/sql, with sqlite or postgres
// selected by config.
type SQLProvider struct {
	db     *sql.DB
	driver string
}

// NewSQLProvider opens the database and applies the schema.
func NewSQLProvider(cfg *config.DatabaseConfig) (*SQLProvider, error) {
	driver := cfg.Type
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Type, err)
	}

	p := &SQLProvider{db: db, driver: driver}
	for _, stmt := range strings.Split(sqlSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return p, nil
}

// rebind converts ? placeholders to $n for postgres.
func (p *SQLProvider) rebind(query string) string {
	if p.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *SQLProvider) CreateReading(ctx context.Context, r *PersistedReading) (*PersistedReading, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	cardsJSON, err := json.Marshal(r.Cards)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize reading cards: %w", err)
	}
	adviceJSON, err := json.Marshal(r.Advice)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize advice: %w", err)
	}

	// One transaction covers the reading and its usage logs; a reading
	// with partial logs must never become visible.
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, p.rebind(`
		INSERT INTO readings
			(id, user_id, spread_type, question, category, cards,
			 card_relationships, overall_reading, advice, summary,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.SpreadType, r.Question, r.Category, string(cardsJSON),
		r.CardRelationships, r.OverallReading, string(adviceJSON), r.Summary,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}

	for i := range r.LLMUsage {
		r.LLMUsage[i].ReadingID = r.ID
		if err := p.insertUsageLog(ctx, tx, &r.LLMUsage[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reading: %w", err)
	}
	return r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *SQLProvider) CreateLLMUsageLog(ctx context.Context, log *LLMUsageLog) error {
	return p.insertUsageLog(ctx, p.db, log)
}

func (p *SQLProvider) insertUsageLog(ctx context.Context, ex execer, log *LLMUsageLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx, p.rebind(`
		INSERT INTO llm_usage_logs
			(id, reading_id, provider, model, prompt_tokens, completion_tokens,
			 total_tokens, estimated_cost, latency_seconds, purpose, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.ReadingID, log.Provider, log.Model, log.PromptTokens,
		log.CompletionTokens, log.TotalTokens, log.EstimatedCost,
		log.LatencySeconds, string(log.Purpose), log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

func (p *SQLProvider) GetCardByID(ctx context.Context, id int) (*tarot.Card, error) {
	var payload string
	err := p.db.QueryRowContext(ctx, p.rebind(`SELECT payload FROM cards WHERE id = ?`), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query card %d: %w", id, err)
	}
	return decodeCard(payload)
}

func (p *SQLProvider) GetCards(ctx context.Context, filters CardFilters, page Page) ([]tarot.Card, error) {
	query := `SELECT payload FROM cards`
	var (
		conds []string
		args  []any
	)
	if filters.Arcana != "" {
		conds = append(conds, "arcana_type = ?")
		args = append(args, string(filters.Arcana))
	}
	if filters.Suit != "" {
		conds = append(conds, "suit = ?")
		args = append(args, string(filters.Suit))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if page.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := p.db.QueryContext(ctx, p.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

func (p *SQLProvider) GetRandomCards(ctx context.Context, n int) ([]tarot.Card, error) {
	rows, err := p.db.QueryContext(ctx, p.rebind(`SELECT payload FROM cards ORDER BY RANDOM() LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query random cards: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

// SeedCards upserts the reference deck, for boot-time sync with the
// knowledge base.
func (p *SQLProvider) SeedCards(ctx context.Context, cards []*tarot.Card) error {
	for _, card := range cards {
		payload, err := json.Marshal(card)
		if err != nil {
			return fmt.Errorf("failed to serialize card %d: %w", card.ID, err)
		}
		var query string
		if p.driver == "postgres" {
			query = `INSERT INTO cards (id, name, name_ko, arcana_type, suit, number, payload)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`
		} else {
			query = `INSERT OR REPLACE INTO cards (id, name, name_ko, arcana_type, suit, number, payload)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
		}
		_, err = p.db.ExecContext(ctx, p.rebind(query),
			card.ID, card.Name, card.NameKo, string(card.Arcana), string(card.Suit), card.Number, string(payload))
		if err != nil {
			return fmt.Errorf("failed to seed card %d: %w", card.ID, err)
		}
	}
	return nil
}

func (p *SQLProvider) Close() error {
	return p.db.Close()
}

func decodeCard(payload string) (*tarot.Card, error) {
	var card tarot.Card
	if err := json.Unmarshal([]byte(payload), &card); err != nil {
		return nil, fmt.Errorf("corrupt card payload: %w", err)
	}
	return &card, nil
}

func scanCards(rows *sql.Rows) ([]tarot.Card, error) {
	var out []tarot.Card
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		card, err := decodeCard(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *card)
	}
	return out, rows.Err()
}
