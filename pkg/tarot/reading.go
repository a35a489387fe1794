package tarot

// CardInterpretation is one card's portion of a reading.
type CardInterpretation struct {
	CardID         int    `json:"card_id"`
	Position       string `json:"position"`
	Interpretation string `json:"interpretation"`
	KeyMessage     string `json:"key_message"`
}

// Advice is the actionable closing section of a reading.
type Advice struct {
	ImmediateAction string `json:"immediate_action"`
	ShortTerm       string `json:"short_term"`
	LongTerm        string `json:"long_term,omitempty"`
	Mindset         string `json:"mindset,omitempty"`
	Cautions        string `json:"cautions,omitempty"`
}

// ReadingResponse is the validated structured output of a reading.
// Positions are unique within a reading and cards is never empty.
type ReadingResponse struct {
	Cards             []CardInterpretation `json:"cards"`
	CardRelationships string               `json:"card_relationships,omitempty"`
	OverallReading    string               `json:"overall_reading"`
	Advice            Advice               `json:"advice"`
	Summary           string               `json:"summary"`
}
