// Package streaming delivers reading generation progressively as typed
// Server-Sent Events with a fixed stage order.
package streaming

import (
	"encoding/json"
	"fmt"
)

// EventName is the closed set of SSE event names.
type EventName string

const (
	EventStarted         EventName = "started"
	EventProgress        EventName = "progress"
	EventCardDrawn       EventName = "card_drawn"
	EventRAGEnrichment   EventName = "rag_enrichment"
	EventAIGeneration    EventName = "ai_generation"
	EventSectionComplete EventName = "section_complete"
	EventComplete        EventName = "complete"
	EventError           EventName = "error"
)

// Event is one typed wire event.
type Event struct {
	Name EventName
	Data any
}

// SSE encodes the event in wire format: "event: <name>\ndata: <json>\n\n".
func (e Event) SSE() string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		// A payload that cannot marshal is a programming error; keep the
		// stream alive with a diagnostic body.
		data = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Name, data)
}

// StartedData opens the stream.
type StartedData struct {
	SpreadType string `json:"spread_type"`
	Question   string `json:"question"`
}

// ProgressData reports pipeline progress. Percent never decreases within
// a stream.
type ProgressData struct {
	Stage   string `json:"stage"`
	Percent int    `json:"progress"`
}

// CardDrawnData announces one drawn card, in draw order.
type CardDrawnData struct {
	CardID     int    `json:"card_id"`
	Name       string `json:"name"`
	NameKo     string `json:"name_ko,omitempty"`
	Position   string `json:"position"`
	IsReversed bool   `json:"is_reversed"`
	Percent    int    `json:"progress"`
}

// RAGEnrichmentData summarizes the enrichment outcome.
type RAGEnrichmentData struct {
	CardsEnriched  int  `json:"cards_enriched"`
	SpreadLoaded   bool `json:"spread_loaded"`
	CategoryLoaded bool `json:"category_loaded"`
}

// AIGenerationData names the provider chain head serving the reading.
type AIGenerationData struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// SectionCompleteData delivers one finished section of the reading.
type SectionCompleteData struct {
	Section string `json:"section"`
	Content any    `json:"content"`
	Percent int    `json:"progress"`
}

// CompleteData closes a successful stream.
type CompleteData struct {
	ReadingID        string  `json:"reading_id"`
	TotalTimeSeconds float64 `json:"total_time"`
	ReadingSummary   string  `json:"reading_summary"`
}

// ErrorData closes a failed stream. Details are truncated to 500 runes.
type ErrorData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Stage   string `json:"stage"`
}
