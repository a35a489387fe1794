package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/arcanum-labs/arcanum/pkg/knowledge"
	"github.com/arcanum-labs/arcanum/pkg/vector"
)

type ingestDoc struct {
	id   string
	text string
	meta map[string]string
}

// IngestKnowledge chunks the knowledge base into snippets and writes them
// to the vector store, replacing its previous contents. Returns the
// number of snippets indexed.
func IngestKnowledge(ctx context.Context, kb *knowledge.Base, store *vector.Store) (int, error) {
	if err := store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear vector store: %w", err)
	}

	var docs []ingestDoc

	for _, card := range kb.AllCards() {
		id := strconv.Itoa(card.ID)
		meta := func(orientation string) map[string]string {
			m := map[string]string{
				"kind":    "card",
				"card_id": id,
				"name":    card.Name,
			}
			if orientation != "" {
				m["orientation"] = orientation
			}
			return m
		}
		docs = append(docs,
			ingestDoc{"card-" + id + "-upright", card.Name + " upright: " + card.MeaningUpright, meta("upright")},
			ingestDoc{"card-" + id + "-reversed", card.Name + " reversed: " + card.MeaningReversed, meta("reversed")},
		)
		if card.Description != "" {
			docs = append(docs, ingestDoc{"card-" + id + "-description", card.Name + ": " + card.Description, meta("")})
		}
		if card.Symbolism != "" {
			docs = append(docs, ingestDoc{"card-" + id + "-symbolism", card.Name + " symbolism: " + card.Symbolism, meta("")})
		}
	}

	for _, spread := range kb.AllSpreads() {
		meta := map[string]string{"kind": "spread", "spread": spread.Key}
		if spread.Description != "" {
			docs = append(docs, ingestDoc{"spread-" + spread.Key, spread.Name + ": " + spread.Description, meta})
		}
		for _, pos := range spread.Positions {
			if pos.Meaning == "" {
				continue
			}
			docs = append(docs, ingestDoc{
				"spread-" + spread.Key + "-" + pos.Key,
				spread.Name + " position " + pos.Name + ": " + pos.Meaning,
				meta,
			})
		}
	}

	for _, combo := range kb.MatchCombinations(allCardIDs(kb)) {
		id := "combination-" + combo.Name
		docs = append(docs, ingestDoc{id, combo.Name + ": " + combo.Meaning, map[string]string{"kind": "combination"}})
	}

	for _, category := range kb.AllCategories() {
		if category.Guide == "" {
			continue
		}
		docs = append(docs, ingestDoc{
			"category-" + category.Key,
			category.Name + ": " + category.Guide,
			map[string]string{"kind": "category", "category": category.Key},
		})
	}

	if len(docs) == 0 {
		slog.Warn("Knowledge base produced no snippets to index")
		return 0, nil
	}

	documents := make([]string, len(docs))
	metadatas := make([]map[string]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		documents[i] = d.text
		metadatas[i] = d.meta
		ids[i] = d.id
	}

	if err := store.Add(ctx, documents, metadatas, ids); err != nil {
		return 0, err
	}
	slog.Info("Knowledge base indexed", "snippets", len(docs))
	return len(docs), nil
}

func allCardIDs(kb *knowledge.Base) []int {
	cards := kb.AllCards()
	ids := make([]int, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
