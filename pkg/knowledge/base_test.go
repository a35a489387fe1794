package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

func writeFixture(t *testing.T, root, rel string, v any) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func fixtureBase(t *testing.T) *Base {
	t.Helper()
	root := t.TempDir()

	writeFixture(t, root, "cards/major_arcana/00_fool.json", tarot.Card{
		ID: 0, Name: "The Fool", NameKo: "바보",
		MeaningUpright: "새로운 시작", MeaningReversed: "무모함",
	})
	writeFixture(t, root, "cards/major_arcana/20_judgement.json", tarot.Card{
		ID: 20, Name: "Judgement", NameKo: "심판",
		MeaningUpright: "부활", MeaningReversed: "자기 의심",
	})
	writeFixture(t, root, "cards/minor_arcana/wands/22_ace.json", tarot.Card{
		ID: 22, Name: "Ace of Wands", NameKo: "완드 에이스",
		MeaningUpright: "영감", MeaningReversed: "지연",
	})
	// Declared suit contradicts the id range; the loader must correct it.
	writeFixture(t, root, "cards/minor_arcana/cups/36_ace.json", tarot.Card{
		ID: 36, Name: "Ace of Cups", NameKo: "컵 에이스", Suit: tarot.SuitWands,
		MeaningUpright: "감정의 시작", MeaningReversed: "감정의 막힘",
	})

	writeFixture(t, root, "spreads/celtic_cross.json", SpreadRecord{
		Key: "celtic_cross", Name: "Celtic Cross", NameKo: "켈틱 크로스",
		Description: "열 장의 카드로 보는 전체 흐름", CardCount: 10,
		Positions: []SpreadPosition{{Key: "present_situation", Name: "Present Situation", NameKo: "현재 상황"}},
	})
	writeFixture(t, root, "combinations/major_pairs.json", CombinationFile{
		Name: "major_pairs",
		Combinations: []Combination{
			{Name: "fool_and_judgement", CardIDs: []int{0, 20}, Meaning: "새 출발의 부름"},
			{Name: "unrelated", CardIDs: []int{45, 46}, Meaning: "관계없음"},
		},
	})
	writeFixture(t, root, "categories/love.json", CategoryRecord{
		Key: "love", Name: "Love", NameKo: "연애",
		Guide:        "연애 질문을 읽는 방법",
		CardMeanings: map[string]string{"0": "연애에서의 새 시작"},
	})

	base, err := Load(root)
	require.NoError(t, err)
	return base
}

func TestLoad_EmptyPathRejected(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_MissingRootRejected(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestBase_CardLookup(t *testing.T) {
	base := fixtureBase(t)

	card := base.Card(0)
	require.NotNil(t, card)
	assert.Equal(t, "The Fool", card.Name)
	assert.Equal(t, tarot.ArcanaMajor, card.Arcana)

	assert.Nil(t, base.Card(7), "missing ids resolve to nil")
}

func TestBase_LegacyAlias21ResolvesTo20(t *testing.T) {
	base := fixtureBase(t)

	card := base.Card(21)
	require.NotNil(t, card)
	assert.Equal(t, 20, card.ID)
	assert.Equal(t, "Judgement", card.Name)
}

func TestBase_MinorArcanaSuitDerivedFromID(t *testing.T) {
	base := fixtureBase(t)

	wand := base.Card(22)
	require.NotNil(t, wand)
	assert.Equal(t, tarot.ArcanaMinor, wand.Arcana)
	assert.Equal(t, tarot.SuitWands, wand.Suit)

	// The fixture declared wands for card 36; the id range wins.
	cup := base.Card(36)
	require.NotNil(t, cup)
	assert.Equal(t, tarot.SuitCups, cup.Suit)
}

func TestSuitForID(t *testing.T) {
	tests := []struct {
		id   int
		want tarot.Suit
	}{
		{22, tarot.SuitWands},
		{35, tarot.SuitWands},
		{36, tarot.SuitCups},
		{49, tarot.SuitCups},
		{50, tarot.SuitSwords},
		{63, tarot.SuitSwords},
		{64, tarot.SuitPentacles},
		{77, tarot.SuitPentacles},
		{0, ""},
		{78, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuitForID(tt.id), "id %d", tt.id)
	}
}

func TestBase_AllCardsSortedByID(t *testing.T) {
	base := fixtureBase(t)
	cards := base.AllCards()
	require.Len(t, cards, 4)
	for i := 1; i < len(cards); i++ {
		assert.Less(t, cards[i-1].ID, cards[i].ID)
	}
}

func TestBase_SpreadAndCategory(t *testing.T) {
	base := fixtureBase(t)

	spread := base.Spread("celtic_cross")
	require.NotNil(t, spread)
	assert.Equal(t, 10, spread.CardCount)
	assert.Nil(t, base.Spread("nonexistent"))

	assert.Equal(t, "연애에서의 새 시작", base.CategoryCardMeaning("love", 0))
	assert.Empty(t, base.CategoryCardMeaning("love", 99))
	assert.Empty(t, base.CategoryCardMeaning("career", 0))
}

func TestBase_MatchCombinations(t *testing.T) {
	base := fixtureBase(t)

	matched := base.MatchCombinations([]int{0})
	require.Len(t, matched, 1)
	assert.Equal(t, "fool_and_judgement", matched[0].Name)

	assert.Empty(t, base.MatchCombinations([]int{5, 6}))
}

func TestBase_MissingSectionsAreEmpty(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "cards/major_arcana/00_fool.json", tarot.Card{ID: 0, Name: "The Fool"})

	base, err := Load(root)
	require.NoError(t, err)
	assert.Len(t, base.AllCards(), 1)
	assert.Empty(t, base.AllSpreads())
	assert.Empty(t, base.AllCategories())
}

func TestBase_ReloadPicksUpChanges(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "cards/major_arcana/00_fool.json", tarot.Card{ID: 0, Name: "The Fool"})

	base, err := Load(root)
	require.NoError(t, err)
	require.Len(t, base.AllCards(), 1)

	writeFixture(t, root, "cards/major_arcana/01_magician.json", tarot.Card{ID: 1, Name: "The Magician"})
	require.NoError(t, base.Reload())
	assert.Len(t, base.AllCards(), 2)
}
