package tarot

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffler draws distinct cards with random orientation from a deck.
type Shuffler struct {
	deck []Card
	// ReversalChance is the probability a drawn card is reversed, in percent.
	ReversalChance int
}

// NewShuffler creates a shuffler over the given deck.
func NewShuffler(deck []Card) *Shuffler {
	return &Shuffler{deck: deck, ReversalChance: 50}
}

// Draw returns n distinct cards from the deck, each with an orientation
// decided at draw time. Uses crypto/rand so draws are not reproducible.
func (s *Shuffler) Draw(n int) ([]DrawnCard, error) {
	if n <= 0 {
		return nil, fmt.Errorf("draw count must be positive, got %d", n)
	}
	if n > len(s.deck) {
		return nil, fmt.Errorf("cannot draw %d cards from a deck of %d", n, len(s.deck))
	}

	indices := make([]int, len(s.deck))
	for i := range indices {
		indices[i] = i
	}

	// Partial Fisher-Yates: only the first n swaps matter.
	for i := 0; i < n; i++ {
		j, err := randInt(len(indices) - i)
		if err != nil {
			return nil, fmt.Errorf("failed to draw random index: %w", err)
		}
		indices[i], indices[i+j] = indices[i+j], indices[i]
	}

	drawn := make([]DrawnCard, 0, n)
	for i := 0; i < n; i++ {
		orientation := OrientationUpright
		roll, err := randInt(100)
		if err != nil {
			return nil, fmt.Errorf("failed to roll orientation: %w", err)
		}
		if roll < s.ReversalChance {
			orientation = OrientationReversed
		}
		drawn = append(drawn, DrawnCard{Card: s.deck[indices[i]], Orientation: orientation})
	}
	return drawn, nil
}

func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
