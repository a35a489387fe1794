package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// DocumentProvider stores readings and cards as JSON documents under a
// local data directory. Usage logs are embedded in the reading document
// rather than kept in a separate collection.
type DocumentProvider struct {
	root string
	mu   sync.Mutex
}

// NewDocumentProvider creates the data directories under root.
func NewDocumentProvider(root string) (*DocumentProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("document store path cannot be empty")
	}
	for _, dir := range []string{readingsDir(root), cardsDir(root)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create document store directory: %w", err)
		}
	}
	return &DocumentProvider{root: root}, nil
}

func readingsDir(root string) string { return filepath.Join(root, "readings") }
func cardsDir(root string) string    { return filepath.Join(root, "cards") }

func (p *DocumentProvider) readingPath(id string) string {
	return filepath.Join(readingsDir(p.root), id+".json")
}

func (p *DocumentProvider) CreateReading(_ context.Context, r *PersistedReading) (*PersistedReading, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	for i := range r.LLMUsage {
		r.LLMUsage[i].ReadingID = r.ID
		if r.LLMUsage[i].ID == "" {
			r.LLMUsage[i].ID = uuid.NewString()
		}
		if r.LLMUsage[i].CreatedAt.IsZero() {
			r.LLMUsage[i].CreatedAt = now
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writeDocument(p.readingPath(r.ID), r); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateLLMUsageLog appends the log to its reading's document.
func (p *DocumentProvider) CreateLLMUsageLog(_ context.Context, log *LLMUsageLog) error {
	if log.ReadingID == "" {
		return fmt.Errorf("usage log requires a reading id")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.readingPath(log.ReadingID)
	reading, err := readDocument[PersistedReading](path)
	if err != nil {
		return fmt.Errorf("failed to load reading %s for usage log: %w", log.ReadingID, err)
	}
	reading.LLMUsage = append(reading.LLMUsage, *log)
	reading.UpdatedAt = time.Now().UTC()
	return writeDocument(path, reading)
}

func (p *DocumentProvider) GetCardByID(_ context.Context, id int) (*tarot.Card, error) {
	path := filepath.Join(cardsDir(p.root), strconv.Itoa(id)+".json")
	card, err := readDocument[tarot.Card](path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (p *DocumentProvider) GetCards(_ context.Context, filters CardFilters, page Page) ([]tarot.Card, error) {
	cards, err := p.loadAllCards()
	if err != nil {
		return nil, err
	}

	var filtered []tarot.Card
	for _, c := range cards {
		if filters.Arcana != "" && c.Arcana != filters.Arcana {
			continue
		}
		if filters.Suit != "" && c.Suit != filters.Suit {
			continue
		}
		filtered = append(filtered, c)
	}

	if page.Offset > 0 {
		if page.Offset >= len(filtered) {
			return nil, nil
		}
		filtered = filtered[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(filtered) {
		filtered = filtered[:page.Limit]
	}
	return filtered, nil
}

func (p *DocumentProvider) GetRandomCards(_ context.Context, n int) ([]tarot.Card, error) {
	cards, err := p.loadAllCards()
	if err != nil {
		return nil, err
	}
	if n >= len(cards) {
		return cards, nil
	}
	rand.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards[:n], nil
}

// SeedCards writes the reference deck as card documents.
func (p *DocumentProvider) SeedCards(_ context.Context, cards []*tarot.Card) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, card := range cards {
		path := filepath.Join(cardsDir(p.root), strconv.Itoa(card.ID)+".json")
		if err := writeDocument(path, card); err != nil {
			return err
		}
	}
	return nil
}

func (p *DocumentProvider) Close() error { return nil }

func (p *DocumentProvider) loadAllCards() ([]tarot.Card, error) {
	entries, err := os.ReadDir(cardsDir(p.root))
	if err != nil {
		return nil, fmt.Errorf("failed to list card documents: %w", err)
	}

	var out []tarot.Card
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		card, err := readDocument[tarot.Card](filepath.Join(cardsDir(p.root), e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *card)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func readDocument[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s: %w", path, err)
	}
	return &doc, nil
}

func writeDocument(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return os.Rename(tmp, path)
}
