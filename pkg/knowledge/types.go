package knowledge

// SpreadPosition is one slot in a spread's layout.
type SpreadPosition struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	NameKo  string `json:"name_ko,omitempty"`
	Meaning string `json:"meaning,omitempty"`
}

// SpreadRecord is the knowledge-base description of a spread: richer than
// the runtime spread descriptor, it carries interpretation guidance.
type SpreadRecord struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	NameKo      string           `json:"name_ko,omitempty"`
	Description string           `json:"description,omitempty"`
	WhenToUse   string           `json:"when_to_use,omitempty"`
	CardCount   int              `json:"card_count"`
	Positions   []SpreadPosition `json:"positions"`
}

// Combination is one multi-card pairing with a combined meaning.
type Combination struct {
	Name    string `json:"name"`
	CardIDs []int  `json:"card_ids"`
	Meaning string `json:"meaning"`
}

// CombinationFile groups related combinations under one source file.
type CombinationFile struct {
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Combinations []Combination `json:"combinations"`
}

// CategoryRecord is the interpretation guide for one reading category
// (love, career, ...). CardMeanings maps card id (as a string, JSON keys
// are strings) to the category-specific meaning.
type CategoryRecord struct {
	Key          string            `json:"key"`
	Name         string            `json:"name"`
	NameKo       string            `json:"name_ko,omitempty"`
	Description  string            `json:"description,omitempty"`
	Guide        string            `json:"guide,omitempty"`
	CardMeanings map[string]string `json:"card_meanings,omitempty"`
}
