package tarot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeck(n int) []Card {
	deck := make([]Card, n)
	for i := range deck {
		deck[i] = Card{ID: i}
	}
	return deck
}

func TestShuffler_DrawDistinctCards(t *testing.T) {
	s := NewShuffler(testDeck(78))

	drawn, err := s.Draw(10)
	require.NoError(t, err)
	require.Len(t, drawn, 10)

	seen := make(map[int]bool, len(drawn))
	for _, dc := range drawn {
		assert.False(t, seen[dc.Card.ID], "card %d drawn twice", dc.Card.ID)
		seen[dc.Card.ID] = true
		assert.Contains(t, []Orientation{OrientationUpright, OrientationReversed}, dc.Orientation)
	}
}

func TestShuffler_DrawBounds(t *testing.T) {
	s := NewShuffler(testDeck(3))

	_, err := s.Draw(0)
	require.Error(t, err)
	_, err = s.Draw(-1)
	require.Error(t, err)
	_, err = s.Draw(4)
	require.Error(t, err, "cannot draw more cards than the deck holds")

	drawn, err := s.Draw(3)
	require.NoError(t, err)
	assert.Len(t, drawn, 3)
}

func TestShuffler_ReversalChanceExtremes(t *testing.T) {
	allUpright := NewShuffler(testDeck(20))
	allUpright.ReversalChance = 0
	drawn, err := allUpright.Draw(20)
	require.NoError(t, err)
	for _, dc := range drawn {
		assert.Equal(t, OrientationUpright, dc.Orientation)
	}

	allReversed := NewShuffler(testDeck(20))
	allReversed.ReversalChance = 100
	drawn, err = allReversed.Draw(20)
	require.NoError(t, err)
	for _, dc := range drawn {
		assert.Equal(t, OrientationReversed, dc.Orientation)
	}
}
