package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// recordingProvider captures CreateReading calls.
type recordingProvider struct {
	mu       sync.Mutex
	readings []*PersistedReading
	fail     bool
}

func (r *recordingProvider) CreateReading(ctx context.Context, pr *PersistedReading) (*PersistedReading, error) {
	if r.fail {
		return nil, fmt.Errorf("write failed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, pr)
	return pr, nil
}

func (r *recordingProvider) GetCardByID(ctx context.Context, id int) (*tarot.Card, error) {
	return nil, nil
}
func (r *recordingProvider) GetCards(ctx context.Context, f CardFilters, p Page) ([]tarot.Card, error) {
	return nil, nil
}
func (r *recordingProvider) GetRandomCards(ctx context.Context, n int) ([]tarot.Card, error) {
	return nil, nil
}
func (r *recordingProvider) CreateLLMUsageLog(ctx context.Context, log *LLMUsageLog) error {
	return nil
}
func (r *recordingProvider) Close() error { return nil }

func TestPersister_ScheduleAndWait(t *testing.T) {
	rec := &recordingProvider{}
	p := NewPersister(rec)

	for i := 0; i < 5; i++ {
		p.Schedule(sampleReading())
	}
	p.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.readings, 5)
}

func TestPersister_ScheduleSwallowsFailures(t *testing.T) {
	p := NewPersister(&recordingProvider{fail: true})
	p.Schedule(sampleReading())
	// A failed background write only logs; Wait returns normally.
	p.Wait()
}

func TestPersister_PersistSynchronous(t *testing.T) {
	rec := &recordingProvider{}
	p := NewPersister(rec)

	r, err := p.Persist(context.Background(), sampleReading())
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.Len(t, rec.readings, 1)
}

func TestBuildPersistedReading(t *testing.T) {
	drawn := []tarot.DrawnCard{
		{Card: tarot.Card{ID: 7, Name: "The Chariot", NameKo: "전차"}, Orientation: tarot.OrientationReversed},
		{Card: tarot.Card{ID: 1, Name: "The Magician"}, Orientation: tarot.OrientationUpright},
	}
	result := &reading.Result{
		Cards: drawn,
		Reading: &tarot.ReadingResponse{
			Cards: []tarot.CardInterpretation{
				{CardID: 7, Position: "past", Interpretation: "해석 1", KeyMessage: "키 1"},
				{CardID: 1, Position: "present", Interpretation: "해석 2", KeyMessage: "키 2"},
			},
			CardRelationships: "관계",
			OverallReading:    "전체",
			Advice:            tarot.Advice{ImmediateAction: "행동"},
			Summary:           "요약",
		},
		Usage: []reading.UsageLog{
			{Provider: "openai", Model: "gpt-4o", TotalTokens: 500, EstimatedCost: 0.01, Purpose: reading.PurposeMainReading},
		},
	}

	r := BuildPersistedReading("user-9", tarot.SpreadThreeCardPastPresent, "질문", "love", result)

	assert.Equal(t, "user-9", r.UserID)
	assert.Equal(t, "three_card_past_present_future", r.SpreadType)
	assert.Equal(t, "질문", r.Question)
	assert.Equal(t, "love", r.Category)
	assert.Equal(t, "관계", r.CardRelationships)
	assert.Equal(t, "요약", r.Summary)

	require.Len(t, r.Cards, 2)
	// The interpretation carries the drawn orientation and a card snapshot.
	assert.Equal(t, tarot.OrientationReversed, r.Cards[0].Orientation)
	assert.Equal(t, "The Chariot", r.Cards[0].CardSnapshot.Name)
	assert.Equal(t, "past", r.Cards[0].Position)
	assert.Equal(t, tarot.OrientationUpright, r.Cards[1].Orientation)

	require.Len(t, r.LLMUsage, 1)
	assert.Equal(t, reading.PurposeMainReading, r.LLMUsage[0].Purpose)
	assert.Equal(t, 0.01, r.LLMUsage[0].EstimatedCost)
}
