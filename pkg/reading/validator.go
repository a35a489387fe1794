package reading

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// QualityRules are the per-spread validation thresholds. The Korean-ratio
// threshold and minimum lengths vary by spread; the defaults below encode
// the observed production values.
type QualityRules struct {
	MinInterpretation int
	MinKeyMessage     int
	MinOverall        int
	MinSummary        int
	MinAdvice         int
	KoreanRatio       float64
}

// DefaultRules applies to the three-card spreads and anything unlisted.
func DefaultRules() QualityRules {
	return QualityRules{
		MinInterpretation: 100,
		MinKeyMessage:     5,
		MinOverall:        100,
		MinSummary:        20,
		MinAdvice:         30,
		KoreanRatio:       0.12,
	}
}

// RulesForSpread returns the quality thresholds for a spread. The Celtic
// Cross tolerates a lower Korean ratio and shorter per-card
// interpretations but demands a much longer overall reading; the one-card
// spread accepts a shorter overall.
func RulesForSpread(t tarot.SpreadType) QualityRules {
	rules := DefaultRules()
	switch t {
	case tarot.SpreadOneCard:
		rules.MinOverall = 80
	case tarot.SpreadCelticCross:
		rules.MinInterpretation = 80
		rules.MinOverall = 300
		rules.KoreanRatio = 0.10
	}
	return rules
}

// ValidationError reports a reading that violates the schema or the
// quality rules.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err to a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// KoreanRatio returns the share of Hangul syllables (가-힣) among the
// non-whitespace characters of text. Empty text scores 0.
func KoreanRatio(text string) float64 {
	var korean, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r >= '가' && r <= '힣' {
			korean++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(korean) / float64(total)
}

// Validate checks a parsed reading against the spread and its quality
// rules: required sections present, card count and position uniqueness,
// minimum lengths, and the Korean-content ratio.
func Validate(r *tarot.ReadingResponse, spread tarot.Spread, rules QualityRules) error {
	if r == nil {
		return &ValidationError{Field: "reading", Message: "reading is nil"}
	}
	if len(r.Cards) == 0 {
		return &ValidationError{Field: "cards", Message: "cards must not be empty"}
	}
	if len(r.Cards) != spread.CardCount {
		return &ValidationError{
			Field:   "cards",
			Message: fmt.Sprintf("expected %d cards for %s, got %d", spread.CardCount, spread.Type, len(r.Cards)),
		}
	}

	seen := make(map[string]bool, len(r.Cards))
	for i, card := range r.Cards {
		if seen[card.Position] {
			return &ValidationError{
				Field:   fmt.Sprintf("cards[%d].position", i),
				Message: "duplicate position " + card.Position,
			}
		}
		seen[card.Position] = true

		if utf8.RuneCountInString(card.Interpretation) < rules.MinInterpretation {
			return &ValidationError{
				Field:   fmt.Sprintf("cards[%d].interpretation", i),
				Message: fmt.Sprintf("shorter than %d characters", rules.MinInterpretation),
			}
		}
		if utf8.RuneCountInString(card.KeyMessage) < rules.MinKeyMessage {
			return &ValidationError{
				Field:   fmt.Sprintf("cards[%d].key_message", i),
				Message: fmt.Sprintf("shorter than %d characters", rules.MinKeyMessage),
			}
		}
	}

	if utf8.RuneCountInString(r.OverallReading) < rules.MinOverall {
		return &ValidationError{
			Field:   "overall_reading",
			Message: fmt.Sprintf("shorter than %d characters", rules.MinOverall),
		}
	}
	if utf8.RuneCountInString(r.Summary) < rules.MinSummary {
		return &ValidationError{
			Field:   "summary",
			Message: fmt.Sprintf("shorter than %d characters", rules.MinSummary),
		}
	}
	if utf8.RuneCountInString(r.Advice.ImmediateAction) < rules.MinAdvice {
		return &ValidationError{
			Field:   "advice.immediate_action",
			Message: fmt.Sprintf("shorter than %d characters", rules.MinAdvice),
		}
	}
	if utf8.RuneCountInString(r.Advice.ShortTerm) < rules.MinAdvice {
		return &ValidationError{
			Field:   "advice.short_term",
			Message: fmt.Sprintf("shorter than %d characters", rules.MinAdvice),
		}
	}

	combined := combinedText(r)
	if ratio := KoreanRatio(combined); ratio < rules.KoreanRatio {
		return &ValidationError{
			Field:   "korean_ratio",
			Message: fmt.Sprintf("korean content ratio %.3f below threshold %.2f", ratio, rules.KoreanRatio),
		}
	}
	return nil
}

func combinedText(r *tarot.ReadingResponse) string {
	parts := []string{r.OverallReading, r.Summary, r.CardRelationships,
		r.Advice.ImmediateAction, r.Advice.ShortTerm, r.Advice.LongTerm,
		r.Advice.Mindset, r.Advice.Cautions}
	for _, c := range r.Cards {
		parts = append(parts, c.Interpretation, c.KeyMessage)
	}
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
		b = append(b, ' ')
	}
	return string(b)
}
