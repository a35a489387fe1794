package tarot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSpread(t *testing.T) {
	tests := []struct {
		spreadType SpreadType
		cardCount  int
	}{
		{SpreadOneCard, 1},
		{SpreadThreeCardPastPresent, 3},
		{SpreadThreeCardSituationAction, 3},
		{SpreadCelticCross, 10},
	}
	for _, tt := range tests {
		spread, err := GetSpread(tt.spreadType)
		require.NoError(t, err, "spread %s", tt.spreadType)
		assert.Equal(t, tt.cardCount, spread.CardCount)
		assert.Len(t, spread.Positions, tt.cardCount)
	}

	_, err := GetSpread("five_card")
	require.Error(t, err)
}

func TestCelticCrossPositionOrder(t *testing.T) {
	spread, err := GetSpread(SpreadCelticCross)
	require.NoError(t, err)

	want := []string{
		"present_situation",
		"challenge",
		"distant_past",
		"recent_past",
		"best_outcome",
		"near_future",
		"approach",
		"external_influences",
		"hopes_and_fears",
		"final_outcome",
	}
	assert.Equal(t, want, spread.Positions)
}

func TestIsValidSpreadType(t *testing.T) {
	for _, st := range AllSpreadTypes() {
		assert.True(t, IsValidSpreadType(st))
	}
	assert.False(t, IsValidSpreadType("horseshoe"))
	assert.False(t, IsValidSpreadType(""))
}

func TestDrawnCard_OrientationAccessors(t *testing.T) {
	card := Card{
		KeywordsUpright:  []string{"beginnings"},
		KeywordsReversed: []string{"recklessness"},
		MeaningUpright:   "새로운 시작",
		MeaningReversed:  "무모함",
	}

	upright := DrawnCard{Card: card, Orientation: OrientationUpright}
	assert.False(t, upright.IsReversed())
	assert.Equal(t, []string{"beginnings"}, upright.Keywords())
	assert.Equal(t, "새로운 시작", upright.Meaning())

	reversed := DrawnCard{Card: card, Orientation: OrientationReversed}
	assert.True(t, reversed.IsReversed())
	assert.Equal(t, []string{"recklessness"}, reversed.Keywords())
	assert.Equal(t, "무모함", reversed.Meaning())
}
