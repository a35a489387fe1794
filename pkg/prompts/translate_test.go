package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

func TestTranslateCard_Bilingual(t *testing.T) {
	card := tarot.DrawnCard{
		Card: tarot.Card{
			ID:               36,
			Name:             "Ace of Cups",
			NameKo:           "컵 에이스",
			Arcana:           tarot.ArcanaMinor,
			Suit:             tarot.SuitCups,
			KeywordsReversed: []string{"감정의 억압", "공허함"},
			MeaningUpright:   "새로운 감정의 시작.",
			MeaningReversed:  "감정이 막혀 있습니다.",
		},
		Orientation: tarot.OrientationReversed,
	}

	ctx := TranslateCard(card, "hopes_and_fears")
	assert.Equal(t, 36, ctx.CardID)
	assert.Equal(t, "Ace of Cups", ctx.Name)
	assert.Equal(t, "컵 에이스", ctx.NameKo)
	assert.Equal(t, "reversed", ctx.Orientation)
	assert.Equal(t, "역방향", ctx.OrientationKo)
	assert.Equal(t, "minor", ctx.Arcana)
	assert.Equal(t, "마이너 아르카나", ctx.ArcanaKo)
	assert.Equal(t, "cups", ctx.Suit)
	assert.Equal(t, "컵", ctx.SuitKo)
	assert.Equal(t, "hopes_and_fears", ctx.Position)
	assert.Equal(t, "희망과 두려움", ctx.PositionKo)
	// Keywords and Meaning follow the drawn orientation.
	assert.Equal(t, "감정의 억압, 공허함", ctx.Keywords)
	assert.Equal(t, "감정이 막혀 있습니다.", ctx.Meaning)
	assert.Equal(t, "새로운 감정의 시작.", ctx.MeaningUpright)
	assert.Equal(t, "감정이 막혀 있습니다.", ctx.MeaningReversed)
}

func TestTranslateCard_MajorHasNoSuit(t *testing.T) {
	ctx := TranslateCard(tarot.DrawnCard{
		Card:        tarot.Card{ID: 0, Name: "The Fool", Arcana: tarot.ArcanaMajor},
		Orientation: tarot.OrientationUpright,
	}, "present")
	assert.Empty(t, ctx.Suit)
	assert.Empty(t, ctx.SuitKo)
	assert.Equal(t, "정방향", ctx.OrientationKo)
}

func TestPositionNameKo(t *testing.T) {
	assert.Equal(t, "현재 상황", PositionNameKo("present_situation"))
	assert.Equal(t, "최종 결과", PositionNameKo("final_outcome"))
	assert.Equal(t, "과거", PositionNameKo("past"))
	// Unknown positions fall back to the key itself.
	assert.Equal(t, "mystery_slot", PositionNameKo("mystery_slot"))
}

func TestTranslateCards_PairsByIndex(t *testing.T) {
	cards := []tarot.DrawnCard{
		{Card: tarot.Card{ID: 1, Name: "The Magician"}, Orientation: tarot.OrientationUpright},
		{Card: tarot.Card{ID: 2, Name: "The High Priestess"}, Orientation: tarot.OrientationUpright},
	}
	out := TranslateCards(cards, []string{"past", "present"})
	assert.Len(t, out, 2)
	assert.Equal(t, "past", out[0].Position)
	assert.Equal(t, 1, out[0].CardID)
	assert.Equal(t, "present", out[1].Position)
	assert.Equal(t, 2, out[1].CardID)
}
