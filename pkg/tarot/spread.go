package tarot

import "fmt"

// SpreadType identifies a supported spread.
type SpreadType string

const (
	SpreadOneCard                  SpreadType = "one_card"
	SpreadThreeCardPastPresent     SpreadType = "three_card_past_present_future"
	SpreadThreeCardSituationAction SpreadType = "three_card_situation_action_outcome"
	SpreadCelticCross              SpreadType = "celtic_cross"
)

// Spread describes a named arrangement of positions.
type Spread struct {
	Type      SpreadType
	CardCount int
	// Positions is the canonical ordered list of position names.
	Positions []string
}

var spreads = map[SpreadType]Spread{
	SpreadOneCard: {
		Type:      SpreadOneCard,
		CardCount: 1,
		Positions: []string{"present"},
	},
	SpreadThreeCardPastPresent: {
		Type:      SpreadThreeCardPastPresent,
		CardCount: 3,
		Positions: []string{"past", "present", "future"},
	},
	SpreadThreeCardSituationAction: {
		Type:      SpreadThreeCardSituationAction,
		CardCount: 3,
		Positions: []string{"situation", "action", "outcome"},
	},
	SpreadCelticCross: {
		Type:      SpreadCelticCross,
		CardCount: 10,
		Positions: []string{
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
		},
	},
}

// GetSpread returns the spread descriptor for a spread type.
func GetSpread(t SpreadType) (Spread, error) {
	s, ok := spreads[t]
	if !ok {
		return Spread{}, fmt.Errorf("unknown spread type: %s", t)
	}
	return s, nil
}

// AllSpreadTypes returns every supported spread type.
func AllSpreadTypes() []SpreadType {
	return []SpreadType{
		SpreadOneCard,
		SpreadThreeCardPastPresent,
		SpreadThreeCardSituationAction,
		SpreadCelticCross,
	}
}

// IsValidSpreadType reports whether t names a supported spread.
func IsValidSpreadType(t SpreadType) bool {
	_, ok := spreads[t]
	return ok
}
