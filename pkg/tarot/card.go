// Package tarot holds the card and spread reference model shared by the
// reading pipeline: cards, orientations, spreads, and the shuffler.
package tarot

// Arcana identifies the card family.
type Arcana string

const (
	ArcanaMajor Arcana = "major"
	ArcanaMinor Arcana = "minor"
)

// Suit identifies a minor arcana suit.
type Suit string

const (
	SuitWands     Suit = "wands"
	SuitCups      Suit = "cups"
	SuitSwords    Suit = "swords"
	SuitPentacles Suit = "pentacles"
)

// Orientation is determined at draw time and never changes afterwards.
type Orientation string

const (
	OrientationUpright  Orientation = "upright"
	OrientationReversed Orientation = "reversed"
)

// Card is read-only reference data loaded from the knowledge base.
type Card struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	NameKo           string   `json:"name_ko"`
	Arcana           Arcana   `json:"arcana_type"`
	Suit             Suit     `json:"suit,omitempty"`
	Number           int      `json:"number"`
	KeywordsUpright  []string `json:"keywords_upright"`
	KeywordsReversed []string `json:"keywords_reversed"`
	MeaningUpright   string   `json:"meaning_upright"`
	MeaningReversed  string   `json:"meaning_reversed"`
	Description      string   `json:"description,omitempty"`
	Symbolism        string   `json:"symbolism,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
}

// DrawnCard pairs a card with the orientation it was drawn in.
type DrawnCard struct {
	Card        Card        `json:"card"`
	Orientation Orientation `json:"orientation"`
}

// IsReversed reports whether the card was drawn reversed.
func (d DrawnCard) IsReversed() bool {
	return d.Orientation == OrientationReversed
}

// Keywords returns the keyword list matching the drawn orientation.
func (d DrawnCard) Keywords() []string {
	if d.IsReversed() {
		return d.Card.KeywordsReversed
	}
	return d.Card.KeywordsUpright
}

// Meaning returns the long-form meaning matching the drawn orientation.
func (d DrawnCard) Meaning() string {
	if d.IsReversed() {
		return d.Card.MeaningReversed
	}
	return d.Card.MeaningUpright
}
