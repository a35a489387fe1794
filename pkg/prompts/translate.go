package prompts

import (
	"strings"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// CardPromptContext is the uniform bilingual card shape every reading
// template receives: both names, the orientation in both forms, arcana
// and suit in both languages, the keywords for the drawn orientation,
// and both long-form meanings.
type CardPromptContext struct {
	CardID          int
	Name            string
	NameKo          string
	Orientation     string
	OrientationKo   string
	Arcana          string
	ArcanaKo        string
	Suit            string
	SuitKo          string
	Position        string
	PositionKo      string
	Keywords        string
	Meaning         string
	MeaningUpright  string
	MeaningReversed string
}

var orientationKo = map[tarot.Orientation]string{
	tarot.OrientationUpright:  "정방향",
	tarot.OrientationReversed: "역방향",
}

var arcanaKo = map[tarot.Arcana]string{
	tarot.ArcanaMajor: "메이저 아르카나",
	tarot.ArcanaMinor: "마이너 아르카나",
}

var suitKo = map[tarot.Suit]string{
	tarot.SuitWands:     "완드",
	tarot.SuitCups:      "컵",
	tarot.SuitSwords:    "소드",
	tarot.SuitPentacles: "펜타클",
}

var positionKo = map[string]string{
	"present":             "현재",
	"past":                "과거",
	"future":              "미래",
	"situation":           "상황",
	"action":              "행동",
	"outcome":             "결과",
	"present_situation":   "현재 상황",
	"challenge":           "도전 과제",
	"distant_past":        "먼 과거",
	"recent_past":         "가까운 과거",
	"best_outcome":        "최선의 결과",
	"near_future":         "가까운 미래",
	"approach":            "접근 방식",
	"external_influences": "외부 영향",
	"hopes_and_fears":     "희망과 두려움",
	"final_outcome":       "최종 결과",
}

// PositionNameKo returns the Korean name of a spread position, falling
// back to the key itself for unknown positions.
func PositionNameKo(position string) string {
	if ko, ok := positionKo[position]; ok {
		return ko
	}
	return position
}

// TranslateCard builds the bilingual template shape for one drawn card at
// the given spread position.
func TranslateCard(card tarot.DrawnCard, position string) CardPromptContext {
	return CardPromptContext{
		CardID:          card.Card.ID,
		Name:            card.Card.Name,
		NameKo:          card.Card.NameKo,
		Orientation:     string(card.Orientation),
		OrientationKo:   orientationKo[card.Orientation],
		Arcana:          string(card.Card.Arcana),
		ArcanaKo:        arcanaKo[card.Card.Arcana],
		Suit:            string(card.Card.Suit),
		SuitKo:          suitKo[card.Card.Suit],
		Position:        position,
		PositionKo:      PositionNameKo(position),
		Keywords:        strings.Join(card.Keywords(), ", "),
		Meaning:         card.Meaning(),
		MeaningUpright:  card.Card.MeaningUpright,
		MeaningReversed: card.Card.MeaningReversed,
	}
}

// TranslateCards pairs each drawn card with the spread's position at the
// same index. len(cards) must equal len(positions); the builder validates
// that before calling.
func TranslateCards(cards []tarot.DrawnCard, positions []string) []CardPromptContext {
	out := make([]CardPromptContext, len(cards))
	for i, card := range cards {
		out[i] = TranslateCard(card, positions[i])
	}
	return out
}
