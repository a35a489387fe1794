// Package reading turns orchestrated LLM calls into validated structured
// readings: prompt analysis and model allocation, JSON extraction from
// noisy output, schema and quality validation, and the single-call and
// parallel engines.
package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// ExtractionError reports LLM output that could not be turned into JSON.
// Truncated marks failures attributable to an exhausted output budget,
// which the engines answer with a larger max_tokens retry.
type ExtractionError struct {
	Message   string
	Truncated bool
}

func (e *ExtractionError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("json extraction failed (truncated): %s", e.Message)
	}
	return "json extraction failed: " + e.Message
}

// AsExtractionError unwraps err to an *ExtractionError when possible.
func AsExtractionError(err error) (*ExtractionError, bool) {
	var ee *ExtractionError
	ok := errors.As(err, &ee)
	return ee, ok
}

var fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the JSON payload out of raw LLM output: a fenced
// block wins, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &ExtractionError{Message: "empty response"}
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		inner := strings.TrimSpace(m[1])
		if inner != "" {
			return inner, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return "", &ExtractionError{Message: "no JSON object found in response"}
	}
	return trimmed[start : end+1], nil
}

// ParseInto extracts JSON from content and unmarshals it into v. The
// finish reason of the producing call feeds truncation detection: a
// max_tokens finish, or a syntax error at the end of the payload, tags
// the error as truncated.
func ParseInto(content string, finish llms.FinishReason, v any) error {
	payload, err := ExtractJSON(content)
	if err != nil {
		if ee, ok := AsExtractionError(err); ok && finish == llms.FinishMaxTokens {
			ee.Truncated = true
		}
		return err
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &ExtractionError{
			Message:   err.Error(),
			Truncated: finish == llms.FinishMaxTokens || isTrailingSyntaxError(err, payload),
		}
	}
	return nil
}

// ParseReading parses a full structured reading.
func ParseReading(content string, finish llms.FinishReason) (*tarot.ReadingResponse, error) {
	var out tarot.ReadingResponse
	if err := ParseInto(content, finish, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToJSON serializes a reading the same way the parser reads it, so
// parse(toJSON(x)) == x.
func ToJSON(r *tarot.ReadingResponse) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to serialize reading: %w", err)
	}
	return string(data), nil
}

// isTrailingSyntaxError reports whether the unmarshal failure points at
// the very end of the payload, the signature of output cut off
// mid-object.
func isTrailingSyntaxError(err error, payload string) bool {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset >= int64(len(payload))-1
	}
	return strings.Contains(err.Error(), "unexpected end of JSON input")
}
