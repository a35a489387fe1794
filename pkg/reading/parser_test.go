package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

const validReadingJSON = `{
	"cards": [
		{"card_id": 0, "position": "present", "interpretation": "해석", "key_message": "메시지"}
	],
	"overall_reading": "전체 리딩",
	"advice": {"immediate_action": "행동", "short_term": "단기"},
	"summary": "요약"
}`

func TestExtractJSON_FencedBlockWins(t *testing.T) {
	content := "Here is the reading:\n```json\n{\"summary\":\"요약\"}\n```\nHope this helps!"
	payload, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"요약"}`, payload)
}

func TestExtractJSON_UnlabeledFence(t *testing.T) {
	payload, err := ExtractJSON("```\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, payload)
}

func TestExtractJSON_BraceSpanFallback(t *testing.T) {
	content := `The cards say: {"summary":"요약"} — good luck!`
	payload, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"요약"}`, payload)
}

func TestExtractJSON_FencedAndBareEquivalent(t *testing.T) {
	fenced, err := ExtractJSON("```json\n" + validReadingJSON + "\n```")
	require.NoError(t, err)
	bare, err := ExtractJSON("noise before " + validReadingJSON + " noise after")
	require.NoError(t, err)
	assert.JSONEq(t, fenced, bare)
}

func TestExtractJSON_Failures(t *testing.T) {
	for _, content := range []string{"", "   ", "no json here at all", "} backwards {"} {
		_, err := ExtractJSON(content)
		require.Error(t, err, "content %q", content)
		_, ok := AsExtractionError(err)
		assert.True(t, ok)
	}
}

func TestParseReading_RoundTrip(t *testing.T) {
	original := &tarot.ReadingResponse{
		Cards: []tarot.CardInterpretation{
			{CardID: 0, Position: "present", Interpretation: "해석", KeyMessage: "메시지"},
		},
		OverallReading: "전체 리딩",
		Advice:         tarot.Advice{ImmediateAction: "행동"},
		Summary:        "요약",
	}

	serialized, err := ToJSON(original)
	require.NoError(t, err)

	parsed, err := ParseReading(serialized, llms.FinishStop)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseReading_TruncationFromFinishReason(t *testing.T) {
	// Syntactically broken payload plus a max_tokens finish: truncated.
	_, err := ParseReading(`{"cards": [{"card_id": 0,`, llms.FinishMaxTokens)
	require.Error(t, err)
	ee, ok := AsExtractionError(err)
	require.True(t, ok)
	assert.True(t, ee.Truncated)
}

func TestParseReading_TruncationFromTrailingSyntaxError(t *testing.T) {
	// finish says stop, but the JSON breaks off at the very end.
	_, err := ParseReading(`{"cards": [{"card_id": 0}`, llms.FinishStop)
	require.Error(t, err)
	ee, ok := AsExtractionError(err)
	require.True(t, ok)
	assert.True(t, ee.Truncated)
}

func TestParseReading_MalformedMidPayloadNotTruncated(t *testing.T) {
	// A type error in the middle of an intact object is not truncation.
	_, err := ParseReading(`{"cards": "not an array", "summary": "요약"}`, llms.FinishStop)
	require.Error(t, err)
	ee, ok := AsExtractionError(err)
	require.True(t, ok)
	assert.False(t, ee.Truncated)
}

func TestParseInto_GenericPayload(t *testing.T) {
	var payload struct {
		OverallReading string `json:"overall_reading"`
		Summary        string `json:"summary"`
	}
	content := "```json\n{\"overall_reading\":\"전체\",\"summary\":\"요약\"}\n```"
	require.NoError(t, ParseInto(content, llms.FinishStop, &payload))
	assert.Equal(t, "전체", payload.OverallReading)
	assert.Equal(t, "요약", payload.Summary)
}
