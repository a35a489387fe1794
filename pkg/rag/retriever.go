package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/arcanum-labs/arcanum/pkg/knowledge"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
	"github.com/arcanum-labs/arcanum/pkg/vector"
)

// Snippet is one retrieved passage with its provenance.
type Snippet struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float32           `json:"distance"`
	ID       string            `json:"id"`
}

// CardContext is a card's KB record plus the snippets retrieved for it.
type CardContext struct {
	Card     *tarot.Card `json:"card"`
	Snippets []Snippet   `json:"snippets,omitempty"`
}

// SpreadContext is a spread's KB record plus interpretation snippets.
type SpreadContext struct {
	Record   *knowledge.SpreadRecord `json:"record"`
	Snippets []Snippet               `json:"snippets,omitempty"`
}

// CombinationContext holds the combinations matched against the drawn
// cards plus free-text snippets about card pairings.
type CombinationContext struct {
	Combinations []knowledge.Combination `json:"combinations,omitempty"`
	Snippets     []Snippet               `json:"snippets,omitempty"`
}

// CategoryContext is a category guide plus per-card meanings scoped to it.
type CategoryContext struct {
	Record       *knowledge.CategoryRecord `json:"record"`
	CardMeanings map[int]string            `json:"card_meanings,omitempty"`
}

// Retriever answers the five context queries the enricher composes. Each
// result is cached in the LRU when one is attached.
type Retriever struct {
	kb    *knowledge.Base
	store *vector.Store
	cache *LRU
}

// NewRetriever builds a retriever. cache may be nil to disable caching.
func NewRetriever(kb *knowledge.Base, store *vector.Store, cache *LRU) *Retriever {
	return &Retriever{kb: kb, store: store, cache: cache}
}

// CacheStats returns LRU statistics, zero-valued when caching is off.
func (r *Retriever) CacheStats() Stats {
	if r.cache == nil {
		return Stats{}
	}
	return r.cache.Stats()
}

// ClearCache drops every cached retrieval.
func (r *Retriever) ClearCache() {
	if r.cache != nil {
		r.cache.Clear()
	}
}

func (r *Retriever) cached(key string) (any, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.Get(key)
}

func (r *Retriever) remember(key string, value any) {
	if r.cache != nil {
		r.cache.Put(key, value)
	}
}

// CardContext returns a card's KB record plus the top-k snippets scoped
// to that card. A card absent from the KB yields an error.
func (r *Retriever) CardContext(ctx context.Context, cardID int, query string, k int) (*CardContext, error) {
	key := cacheKey("card", query, k, strconv.Itoa(cardID))
	if v, ok := r.cached(key); ok {
		return v.(*CardContext), nil
	}

	card := r.kb.Card(cardID)
	if card == nil {
		return nil, fmt.Errorf("card %d not in knowledge base", cardID)
	}

	snippets, err := r.search(ctx, query, k, map[string]string{"card_id": strconv.Itoa(card.ID)})
	if err != nil {
		return nil, fmt.Errorf("card %d snippet search failed: %w", cardID, err)
	}

	out := &CardContext{Card: card, Snippets: snippets}
	r.remember(key, out)
	return out, nil
}

// SpreadContext returns a spread's KB record plus interpretation snippets.
func (r *Retriever) SpreadContext(ctx context.Context, spreadKey string, k int) (*SpreadContext, error) {
	key := cacheKey("spread", spreadKey, k)
	if v, ok := r.cached(key); ok {
		return v.(*SpreadContext), nil
	}

	record := r.kb.Spread(spreadKey)
	if record == nil {
		return nil, fmt.Errorf("spread %q not in knowledge base", spreadKey)
	}

	snippets, err := r.search(ctx, record.Name+" spread interpretation", k, map[string]string{"kind": "spread"})
	if err != nil {
		return nil, fmt.Errorf("spread %q snippet search failed: %w", spreadKey, err)
	}

	out := &SpreadContext{Record: record, Snippets: snippets}
	r.remember(key, out)
	return out, nil
}

// CombinationContext matches KB combinations containing any of the drawn
// card ids and combines them with a free-text search over pairings.
func (r *Retriever) CombinationContext(ctx context.Context, cardIDs []int, k int) (*CombinationContext, error) {
	ids := append([]int(nil), cardIDs...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	idList := strings.Join(parts, ",")

	key := cacheKey("combination", idList, k)
	if v, ok := r.cached(key); ok {
		return v.(*CombinationContext), nil
	}

	combos := r.kb.MatchCombinations(ids)

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if card := r.kb.Card(id); card != nil {
			names = append(names, card.Name)
		}
	}
	snippets, err := r.search(ctx, "card combination "+strings.Join(names, " "), k, map[string]string{"kind": "combination"})
	if err != nil {
		return nil, fmt.Errorf("combination snippet search failed: %w", err)
	}

	out := &CombinationContext{Combinations: combos, Snippets: snippets}
	r.remember(key, out)
	return out, nil
}

// CategoryContext returns a category guide plus the category-specific
// meaning of each drawn card.
func (r *Retriever) CategoryContext(ctx context.Context, category string, cardIDs []int) (*CategoryContext, error) {
	ids := append([]int(nil), cardIDs...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	key := cacheKey("category", category, 0, parts...)
	if v, ok := r.cached(key); ok {
		return v.(*CategoryContext), nil
	}

	record := r.kb.Category(category)
	if record == nil {
		return nil, fmt.Errorf("category %q not in knowledge base", category)
	}

	meanings := make(map[int]string)
	for _, id := range ids {
		if m := r.kb.CategoryCardMeaning(category, id); m != "" {
			meanings[id] = m
		}
	}

	out := &CategoryContext{Record: record, CardMeanings: meanings}
	r.remember(key, out)
	return out, nil
}

// GeneralContext returns the top-k free-text snippets for the question.
func (r *Retriever) GeneralContext(ctx context.Context, query string, k int) ([]Snippet, error) {
	key := cacheKey("general", query, k)
	if v, ok := r.cached(key); ok {
		return v.([]Snippet), nil
	}

	snippets, err := r.search(ctx, query, k, nil)
	if err != nil {
		return nil, fmt.Errorf("general snippet search failed: %w", err)
	}

	r.remember(key, snippets)
	return snippets, nil
}

func (r *Retriever) search(ctx context.Context, query string, k int, filter map[string]string) ([]Snippet, error) {
	if r.store == nil || k < 1 {
		return nil, nil
	}
	result, err := r.store.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	snippets := make([]Snippet, len(result.Documents))
	for i := range result.Documents {
		snippets[i] = Snippet{
			Text:     result.Documents[i],
			Metadata: result.Metadatas[i],
			Distance: result.Distances[i],
			ID:       result.IDs[i],
		}
	}
	return snippets, nil
}
