package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// ContextMetadata echoes the request parameters the context was built for.
type ContextMetadata struct {
	Language   string `json:"language"`
	Question   string `json:"question"`
	SpreadType string `json:"spread_type"`
	Category   string `json:"category,omitempty"`
	NumCards   int    `json:"num_cards"`
}

// EnrichedContext is the fixed-shape bundle passed to prompt building.
// Sections whose retrieval failed are empty, never missing.
type EnrichedContext struct {
	CardsContext       []CardContext       `json:"cards_context"`
	SpreadContext      *SpreadContext      `json:"spread_context,omitempty"`
	CombinationContext *CombinationContext `json:"combination_context,omitempty"`
	CategoryContext    *CategoryContext    `json:"category_context,omitempty"`
	GeneralInsights    []Snippet           `json:"general_insights,omitempty"`
	Metadata           ContextMetadata     `json:"metadata"`
}

// FormatStyle selects how much of the context the prompt carries.
type FormatStyle string

const (
	FormatDetailed FormatStyle = "detailed"
	FormatConcise  FormatStyle = "concise"
	FormatSymbolic FormatStyle = "symbolic"
)

// Enricher composes the retriever's five context families into one
// EnrichedContext, running the families concurrently.
type Enricher struct {
	retriever *Retriever
	topK      int
}

// NewEnricher builds an enricher. topK bounds every snippet search.
func NewEnricher(retriever *Retriever, topK int) *Enricher {
	if topK < 1 {
		topK = 3
	}
	return &Enricher{retriever: retriever, topK: topK}
}

// Enrich runs all retrieval families concurrently and waits for every
// one. A failed family degrades to an empty section with a warning; the
// enrichment itself never fails.
func (e *Enricher) Enrich(ctx context.Context, cards []tarot.DrawnCard, spreadType tarot.SpreadType, question, category, language string) *EnrichedContext {
	out := &EnrichedContext{
		CardsContext: make([]CardContext, 0, len(cards)),
		Metadata: ContextMetadata{
			Language:   language,
			Question:   question,
			SpreadType: string(spreadType),
			Category:   category,
			NumCards:   len(cards),
		},
	}

	cardIDs := make([]int, len(cards))
	for i, c := range cards {
		cardIDs[i] = c.Card.ID
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		cardContexts = make([]*CardContext, len(cards))
	)

	for i, card := range cards {
		wg.Add(1)
		go func(i int, cardID int) {
			defer wg.Done()
			cc, err := e.retriever.CardContext(ctx, cardID, question, e.topK)
			if err != nil {
				slog.Warn("Card context retrieval failed, section degraded", "card_id", cardID, "error", err)
				return
			}
			cardContexts[i] = cc
		}(i, card.Card.ID)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sc, err := e.retriever.SpreadContext(ctx, string(spreadType), e.topK)
		if err != nil {
			slog.Warn("Spread context retrieval failed, section degraded", "spread", spreadType, "error", err)
			return
		}
		mu.Lock()
		out.SpreadContext = sc
		mu.Unlock()
	}()

	if len(cards) > 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cc, err := e.retriever.CombinationContext(ctx, cardIDs, e.topK)
			if err != nil {
				slog.Warn("Combination context retrieval failed, section degraded", "error", err)
				return
			}
			mu.Lock()
			out.CombinationContext = cc
			mu.Unlock()
		}()
	}

	if category != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cc, err := e.retriever.CategoryContext(ctx, category, cardIDs)
			if err != nil {
				slog.Warn("Category context retrieval failed, section degraded", "category", category, "error", err)
				return
			}
			mu.Lock()
			out.CategoryContext = cc
			mu.Unlock()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		snippets, err := e.retriever.GeneralContext(ctx, question, e.topK)
		if err != nil {
			slog.Warn("General context retrieval failed, section degraded", "error", err)
			return
		}
		mu.Lock()
		out.GeneralInsights = snippets
		mu.Unlock()
	}()

	wg.Wait()

	// Preserve draw order; degraded cards are simply absent.
	for _, cc := range cardContexts {
		if cc != nil {
			out.CardsContext = append(out.CardsContext, *cc)
		}
	}
	return out
}

// Format renders the context as prompt-ready text in the chosen style.
// detailed carries everything, concise keeps meanings and drops snippets,
// symbolic keeps keywords and symbolism only.
func (e *Enricher) Format(ec *EnrichedContext, style FormatStyle) string {
	var b strings.Builder

	for _, cc := range ec.CardsContext {
		card := cc.Card
		fmt.Fprintf(&b, "### %s (%s)\n", card.Name, card.NameKo)
		switch style {
		case FormatSymbolic:
			if card.Symbolism != "" {
				fmt.Fprintf(&b, "Symbolism: %s\n", card.Symbolism)
			}
			fmt.Fprintf(&b, "Keywords: %s / %s\n",
				strings.Join(card.KeywordsUpright, ", "),
				strings.Join(card.KeywordsReversed, ", "))
		case FormatConcise:
			fmt.Fprintf(&b, "Upright: %s\nReversed: %s\n", card.MeaningUpright, card.MeaningReversed)
		default:
			fmt.Fprintf(&b, "Upright: %s\nReversed: %s\n", card.MeaningUpright, card.MeaningReversed)
			if card.Description != "" {
				fmt.Fprintf(&b, "Description: %s\n", card.Description)
			}
			for _, s := range cc.Snippets {
				fmt.Fprintf(&b, "- %s\n", s.Text)
			}
		}
		b.WriteString("\n")
	}

	if ec.SpreadContext != nil && ec.SpreadContext.Record != nil {
		rec := ec.SpreadContext.Record
		fmt.Fprintf(&b, "### Spread: %s\n%s\n", rec.Name, rec.Description)
		if style == FormatDetailed {
			for _, s := range ec.SpreadContext.Snippets {
				fmt.Fprintf(&b, "- %s\n", s.Text)
			}
		}
		b.WriteString("\n")
	}

	if ec.CombinationContext != nil && len(ec.CombinationContext.Combinations) > 0 {
		b.WriteString("### Card combinations\n")
		for _, combo := range ec.CombinationContext.Combinations {
			fmt.Fprintf(&b, "- %s: %s\n", combo.Name, combo.Meaning)
		}
		b.WriteString("\n")
	}

	if ec.CategoryContext != nil && ec.CategoryContext.Record != nil {
		rec := ec.CategoryContext.Record
		fmt.Fprintf(&b, "### Category: %s\n%s\n", rec.Name, rec.Guide)
		ids := make([]int, 0, len(ec.CategoryContext.CardMeanings))
		for id := range ec.CategoryContext.CardMeanings {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s\n", ec.CategoryContext.CardMeanings[id])
		}
		b.WriteString("\n")
	}

	if style == FormatDetailed && len(ec.GeneralInsights) > 0 {
		b.WriteString("### Related insights\n")
		for _, s := range ec.GeneralInsights {
			fmt.Fprintf(&b, "- %s\n", s.Text)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
