package streaming

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/rag"
	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/store"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

// Streamer runs the reading pipeline while narrating it as events. The
// stage order is fixed by the generator structure: exactly one started
// event, monotonically non-decreasing progress, and exactly one terminal
// event (complete or error).
type Streamer struct {
	engine    *reading.Engine
	parallel  *reading.ParallelEngine
	enricher  *rag.Enricher
	shuffler  *tarot.Shuffler
	orch      orchestrator.Generator
	persister *store.Persister
	timeout   time.Duration
}

// minStreamTimeout floors the stream deadline; a short configured
// generation timeout must not cut multi-phase readings off early.
const minStreamTimeout = 90 * time.Second

func streamTimeout(cfg *config.ReadingConfig) time.Duration {
	timeout := minStreamTimeout
	if cfg != nil {
		if t := time.Duration(cfg.StreamTimeoutSeconds) * time.Second; t > timeout {
			timeout = t
		}
	}
	return timeout
}

// NewStreamer wires the streaming layer. The stream timeout covers the
// whole pipeline including the multi-phase Celtic Cross.
func NewStreamer(engine *reading.Engine, parallel *reading.ParallelEngine, enricher *rag.Enricher, shuffler *tarot.Shuffler, orch orchestrator.Generator, persister *store.Persister, cfg *config.ReadingConfig) *Streamer {
	timeout := streamTimeout(cfg)
	return &Streamer{
		engine:    engine,
		parallel:  parallel,
		enricher:  enricher,
		shuffler:  shuffler,
		orch:      orch,
		persister: persister,
		timeout:   timeout,
	}
}

// GenerateStream starts the pipeline and returns the event channel. The
// channel closes after the terminal event.
func (s *Streamer) GenerateStream(ctx context.Context, req *reading.Request, userID string) <-chan Event {
	out := make(chan Event, 16)
	go s.run(ctx, req, userID, out)
	return out
}

func (s *Streamer) run(ctx context.Context, req *reading.Request, userID string, out chan<- Event) {
	defer close(out)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	stage := "initializing"

	emit := func(e Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		// Terminal error event; a dead channel just ends the stream.
		emit(Event{Name: EventError, Data: ErrorData{
			Type:    errorType(err),
			Message: err.Error(),
			Details: truncateRunes(err.Error(), 500),
			Stage:   stage,
		}})
	}

	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 0}})
	emit(Event{Name: EventStarted, Data: StartedData{
		SpreadType: string(req.SpreadType),
		Question:   req.Question,
	}})

	// Stage 2: draw.
	stage = "drawing_cards"
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 10}})

	spread, err := tarot.GetSpread(req.SpreadType)
	if err != nil {
		fail(err)
		return
	}
	cards := req.Cards
	if len(cards) == 0 {
		cards, err = s.shuffler.Draw(spread.CardCount)
		if err != nil {
			fail(err)
			return
		}
	}
	for i, dc := range cards {
		emit(Event{Name: EventCardDrawn, Data: CardDrawnData{
			CardID:     dc.Card.ID,
			Name:       dc.Card.Name,
			NameKo:     dc.Card.NameKo,
			Position:   spread.Positions[i],
			IsReversed: dc.IsReversed(),
			Percent:    10 + (i+1)*20/len(cards),
		}})
	}

	// Stage 3: enrich.
	stage = "enriching_context"
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 35}})

	language := req.Language
	if language == "" {
		language = "ko"
	}
	enriched := s.enricher.Enrich(ctx, cards, req.SpreadType, req.Question, req.Category, language)
	emit(Event{Name: EventRAGEnrichment, Data: RAGEnrichmentData{
		CardsEnriched:  len(enriched.CardsContext),
		SpreadLoaded:   enriched.SpreadContext != nil,
		CategoryLoaded: enriched.CategoryContext != nil,
	}})
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 50}})

	// Stage 4: generate.
	stage = "generating_ai"
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 60}})
	status := s.orch.ProviderStatus()
	emit(Event{Name: EventAIGeneration, Data: AIGenerationData{
		Provider: status.Primary.Name,
		Model:    status.Primary.Model,
	}})

	engineReq := *req
	engineReq.Cards = cards
	engineReq.Context = enriched
	engineReq.Language = language
	engineReq.OnRetry = func(attempt int) {
		pct := 60 + attempt*7
		if pct > 80 {
			pct = 80
		}
		emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: pct}})
	}

	var result *reading.Result
	if req.SpreadType == tarot.SpreadCelticCross {
		result, err = s.parallel.Generate(ctx, &engineReq)
	} else {
		result, err = s.engine.Generate(ctx, &engineReq)
	}
	if err != nil {
		fail(err)
		return
	}

	// Stage 5: deliver sections.
	stage = "finalizing"
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 82}})
	sections := []SectionCompleteData{
		{Section: "summary", Content: result.Reading.Summary, Percent: 84},
		{Section: "cards", Content: result.Reading.Cards, Percent: 86},
		{Section: "overall_reading", Content: result.Reading.OverallReading, Percent: 88},
		{Section: "advice", Content: result.Reading.Advice, Percent: 90},
	}
	for _, sec := range sections {
		emit(Event{Name: EventSectionComplete, Data: sec})
	}

	// Stage 6: schedule persistence. Fire-and-forget on its own context,
	// so a client disconnect here cannot lose the write.
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: stage, Percent: 92}})
	persisted := store.BuildPersistedReading(userID, req.SpreadType, req.Question, req.Category, result)
	persisted.ID = uuid.NewString()
	s.persister.Schedule(persisted)

	// Stage 7: done.
	emit(Event{Name: EventProgress, Data: ProgressData{Stage: "completed", Percent: 100}})
	emit(Event{Name: EventComplete, Data: CompleteData{
		ReadingID:        persisted.ID,
		TotalTimeSeconds: time.Since(start).Seconds(),
		ReadingSummary:   result.Reading.Summary,
	}})
}

// errorType maps an error to its taxonomy name for the wire.
func errorType(err error) string {
	if pe, ok := llms.AsProviderError(err); ok {
		return string(pe.Kind)
	}
	var allFailed *orchestrator.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		return "all_providers_failed"
	}
	var noProvider *orchestrator.NoCompatibleProviderError
	if errors.As(err, &noProvider) {
		return "no_compatible_provider"
	}
	if _, ok := reading.AsExtractionError(err); ok {
		return "json_extraction_error"
	}
	if _, ok := reading.AsValidationError(err); ok {
		return "validation_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "internal_error"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
