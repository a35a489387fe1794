package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Persister schedules background reading writes. Once a reading has been
// delivered to the caller, persistence failure is logged and never
// surfaced. In-flight writes are tracked so shutdown can drain them.
type Persister struct {
	provider DatabaseProvider
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewPersister builds a persister with a per-write timeout.
func NewPersister(provider DatabaseProvider) *Persister {
	return &Persister{provider: provider, timeout: 15 * time.Second}
}

// Schedule fires a background write and returns immediately. The write
// runs on its own context: a disconnecting client must not cancel it.
func (p *Persister) Schedule(r *PersistedReading) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if _, err := p.provider.CreateReading(ctx, r); err != nil {
			slog.Error("Background reading persistence failed",
				"reading_id", r.ID,
				"user_id", r.UserID,
				"error", err)
			return
		}
		slog.Debug("Reading persisted", "reading_id", r.ID)
	}()
}

// Persist writes synchronously, for the non-streaming path.
func (p *Persister) Persist(ctx context.Context, r *PersistedReading) (*PersistedReading, error) {
	return p.provider.CreateReading(ctx, r)
}

// Wait blocks until every scheduled write has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// BuildPersistedReading assembles the stored form of an engine result.
func BuildPersistedReading(userID string, spreadType tarot.SpreadType, question, category string, result *reading.Result) *PersistedReading {
	r := &PersistedReading{
		UserID:            userID,
		SpreadType:        string(spreadType),
		Question:          question,
		Category:          category,
		CardRelationships: result.Reading.CardRelationships,
		OverallReading:    result.Reading.OverallReading,
		Advice:            result.Reading.Advice,
		Summary:           result.Reading.Summary,
	}

	byID := make(map[int]tarot.DrawnCard, len(result.Cards))
	for _, dc := range result.Cards {
		byID[dc.Card.ID] = dc
	}
	for _, ci := range result.Reading.Cards {
		pc := PersistedCard{
			CardID:         ci.CardID,
			Position:       ci.Position,
			Interpretation: ci.Interpretation,
			KeyMessage:     ci.KeyMessage,
		}
		if dc, ok := byID[ci.CardID]; ok {
			pc.Orientation = dc.Orientation
			pc.CardSnapshot = dc.Card
		}
		r.Cards = append(r.Cards, pc)
	}

	for _, u := range result.Usage {
		r.LLMUsage = append(r.LLMUsage, LLMUsageLog{
			Provider:         u.Provider,
			Model:            u.Model,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			EstimatedCost:    u.EstimatedCost,
			LatencySeconds:   u.LatencySeconds,
			Purpose:          u.Purpose,
		})
	}
	return r
}
