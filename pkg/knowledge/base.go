// Package knowledge loads the file-backed tarot knowledge base: card
// records, spread guides, card combinations, and category guides. The
// whole tree is scanned once at boot into in-memory maps; lookups never
// touch the filesystem.
package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Minor arcana ids run [22,77], fourteen per suit in this order.
var minorSuitRanges = []struct {
	lo, hi int
	suit   tarot.Suit
}{
	{22, 35, tarot.SuitWands},
	{36, 49, tarot.SuitCups},
	{50, 63, tarot.SuitSwords},
	{64, 77, tarot.SuitPentacles},
}

// SuitForID derives the minor arcana suit from a card id, or "" when the
// id is outside the minor range.
func SuitForID(id int) tarot.Suit {
	for _, r := range minorSuitRanges {
		if id >= r.lo && id <= r.hi {
			return r.suit
		}
	}
	return ""
}

// Base is the loaded knowledge base. Safe for concurrent readers; Reload
// swaps the maps atomically under the write lock.
type Base struct {
	root string

	mu           sync.RWMutex
	cards        map[int]*tarot.Card
	spreads      map[string]*SpreadRecord
	combinations map[string]*CombinationFile
	categories   map[string]*CategoryRecord
}

// Load scans the knowledge tree under root. Missing subdirectories are
// warn-only: the base still loads with empty sections.
func Load(root string) (*Base, error) {
	if root == "" {
		return nil, fmt.Errorf("knowledge base path cannot be empty")
	}
	b := &Base{root: root}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload rescans the tree and replaces the in-memory maps.
func (b *Base) Reload() error {
	if _, err := os.Stat(b.root); err != nil {
		return fmt.Errorf("knowledge base root %s: %w", b.root, err)
	}

	cards := make(map[int]*tarot.Card)
	b.loadMajorArcana(cards)
	b.loadMinorArcana(cards)

	spreads := loadKeyed[SpreadRecord](filepath.Join(b.root, "spreads"), func(rec *SpreadRecord, key string) string {
		if rec.Key == "" {
			rec.Key = key
		}
		return rec.Key
	})
	combinations := loadKeyed[CombinationFile](filepath.Join(b.root, "combinations"), func(rec *CombinationFile, key string) string {
		if rec.Name == "" {
			rec.Name = key
		}
		return key
	})
	categories := loadKeyed[CategoryRecord](filepath.Join(b.root, "categories"), func(rec *CategoryRecord, key string) string {
		if rec.Key == "" {
			rec.Key = key
		}
		return rec.Key
	})

	b.mu.Lock()
	b.cards = cards
	b.spreads = spreads
	b.combinations = combinations
	b.categories = categories
	b.mu.Unlock()

	slog.Info("Knowledge base loaded",
		"path", b.root,
		"cards", len(cards),
		"spreads", len(spreads),
		"combination_files", len(combinations),
		"categories", len(categories))
	return nil
}

func (b *Base) loadMajorArcana(into map[int]*tarot.Card) {
	dir := filepath.Join(b.root, "cards", "major_arcana")
	for _, path := range jsonFiles(dir) {
		card, err := readJSON[tarot.Card](path)
		if err != nil {
			slog.Warn("Skipping unreadable card file", "path", path, "error", err)
			continue
		}
		if card.ID < 0 || card.ID > 20 {
			slog.Warn("Major arcana id out of range, skipping", "path", path, "id", card.ID)
			continue
		}
		card.Arcana = tarot.ArcanaMajor
		into[card.ID] = card
	}
}

func (b *Base) loadMinorArcana(into map[int]*tarot.Card) {
	base := filepath.Join(b.root, "cards", "minor_arcana")
	for _, suit := range []tarot.Suit{tarot.SuitWands, tarot.SuitCups, tarot.SuitSwords, tarot.SuitPentacles} {
		for _, path := range jsonFiles(filepath.Join(base, string(suit))) {
			card, err := readJSON[tarot.Card](path)
			if err != nil {
				slog.Warn("Skipping unreadable card file", "path", path, "error", err)
				continue
			}
			if card.ID < 22 || card.ID > 77 {
				slog.Warn("Minor arcana id out of range, skipping", "path", path, "id", card.ID)
				continue
			}
			derived := SuitForID(card.ID)
			if card.Suit != "" && card.Suit != derived {
				slog.Warn("Card suit does not match its id range, using derived suit",
					"path", path, "id", card.ID, "declared", card.Suit, "derived", derived)
			}
			card.Arcana = tarot.ArcanaMinor
			card.Suit = derived
			into[card.ID] = card
		}
	}
}

// Card looks a card up by id. Id 21 is a legacy alias for 20 and resolves
// with a warning; drop the alias once the base gains a real card 21.
// Missing ids return nil.
func (b *Base) Card(id int) *tarot.Card {
	if id == 21 {
		slog.Warn("Card id 21 is a legacy alias, resolving to 20")
		id = 20
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	card, ok := b.cards[id]
	if !ok {
		slog.Warn("Card not found in knowledge base", "id", id)
		return nil
	}
	return card
}

// AllCards returns every card ordered by id.
func (b *Base) AllCards() []*tarot.Card {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*tarot.Card, 0, len(b.cards))
	for _, c := range b.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spread looks a spread record up by key, nil when absent.
func (b *Base) Spread(key string) *SpreadRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.spreads[key]
	if !ok {
		slog.Warn("Spread not found in knowledge base", "key", key)
		return nil
	}
	return rec
}

// AllSpreads returns every spread record ordered by key.
func (b *Base) AllSpreads() []*SpreadRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*SpreadRecord, 0, len(b.spreads))
	for _, s := range b.spreads {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CombinationFileByName returns one combination file, nil when absent.
func (b *Base) CombinationFileByName(name string) *CombinationFile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.combinations[name]
	if !ok {
		slog.Warn("Combination file not found in knowledge base", "name", name)
		return nil
	}
	return rec
}

// MatchCombinations returns every combination that mentions at least one
// of the given card ids, across all combination files.
func (b *Base) MatchCombinations(cardIDs []int) []Combination {
	want := make(map[int]bool, len(cardIDs))
	for _, id := range cardIDs {
		want[id] = true
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.combinations))
	for name := range b.combinations {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Combination
	for _, name := range names {
		for _, combo := range b.combinations[name].Combinations {
			for _, id := range combo.CardIDs {
				if want[id] {
					out = append(out, combo)
					break
				}
			}
		}
	}
	return out
}

// Category looks a category guide up by key, nil when absent.
func (b *Base) Category(key string) *CategoryRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.categories[key]
	if !ok {
		slog.Warn("Category not found in knowledge base", "key", key)
		return nil
	}
	return rec
}

// AllCategories returns every category guide ordered by key.
func (b *Base) AllCategories() []*CategoryRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*CategoryRecord, 0, len(b.categories))
	for _, c := range b.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CategoryCardMeaning returns the category-specific meaning for one card,
// "" when either the category or the mapping is absent.
func (b *Base) CategoryCardMeaning(categoryKey string, cardID int) string {
	rec := b.Category(categoryKey)
	if rec == nil {
		return ""
	}
	return rec.CardMeanings[fmt.Sprintf("%d", cardID)]
}

func jsonFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Knowledge directory missing, section will be empty", "dir", dir)
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &rec, nil
}

// loadKeyed reads every JSON file in dir into a map. keyFn receives the
// parsed record and the file's base name (without extension) and returns
// the map key.
func loadKeyed[T any](dir string, keyFn func(rec *T, fileKey string) string) map[string]*T {
	out := make(map[string]*T)
	for _, path := range jsonFiles(dir) {
		rec, err := readJSON[T](path)
		if err != nil {
			slog.Warn("Skipping unreadable knowledge file", "path", path, "error", err)
			continue
		}
		key := strings.TrimSuffix(filepath.Base(path), ".json")
		out[keyFn(rec, key)] = rec
	}
	return out
}
