package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arcanum-labs/arcanum/pkg/llms"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/store"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

type readingRequest struct {
	Question    string `json:"question"`
	SpreadType  string `json:"spread_type"`
	Category    string `json:"category,omitempty"`
	UserContext string `json:"user_context,omitempty"`
	Language    string `json:"language,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

func (r *readingRequest) validate() error {
	if r.Question == "" {
		return errors.New("question is required")
	}
	if !tarot.IsValidSpreadType(tarot.SpreadType(r.SpreadType)) {
		return errors.New("invalid spread_type")
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response body", "error", err)
	}
}

// writeError maps the error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"

	if pe, ok := llms.AsProviderError(err); ok {
		kind = string(pe.Kind)
		switch pe.Kind {
		case llms.ErrRateLimit:
			status = http.StatusTooManyRequests
		case llms.ErrTimeout:
			status = http.StatusGatewayTimeout
		case llms.ErrServiceUnavailable:
			status = http.StatusServiceUnavailable
		case llms.ErrAuthentication:
			status = http.StatusInternalServerError
		case llms.ErrInvalidRequest:
			status = http.StatusBadRequest
		}
	}

	var noProvider *orchestrator.NoCompatibleProviderError
	if errors.As(err, &noProvider) {
		status, kind = http.StatusBadRequest, "no_compatible_provider"
	}
	var allFailed *orchestrator.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		status, kind = http.StatusBadGateway, "all_providers_failed"
	}
	if _, ok := reading.AsExtractionError(err); ok {
		status, kind = http.StatusBadGateway, "json_extraction_error"
	}
	if _, ok := reading.AsValidationError(err); ok {
		status, kind = http.StatusBadGateway, "validation_error"
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// handleCreateReading runs the synchronous pipeline and awaits
// persistence before responding.
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	spreadType := tarot.SpreadType(req.SpreadType)
	engineReq := &reading.Request{
		Question:    req.Question,
		SpreadType:  spreadType,
		Category:    req.Category,
		UserContext: req.UserContext,
		Language:    req.Language,
	}

	var (
		result *reading.Result
		err    error
	)
	if spreadType == tarot.SpreadCelticCross {
		result, err = s.parallel.Generate(r.Context(), engineReq)
	} else {
		result, err = s.engine.Generate(r.Context(), engineReq)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	persisted := store.BuildPersistedReading(req.UserID, spreadType, req.Question, req.Category, result)
	// The reading is already materialized; a failed write is logged and
	// the response still goes out.
	saved, perr := s.persister.Persist(r.Context(), persisted)
	if perr != nil {
		slog.Error("Reading persistence failed", "error", perr)
		saved = persisted
	}

	writeJSON(w, http.StatusCreated, saved)
}

// handleStreamReading runs the pipeline as an SSE stream.
func (s *Server) handleStreamReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Hint reverse proxies not to buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.streamer.GenerateStream(r.Context(), &reading.Request{
		Question:    req.Question,
		SpreadType:  tarot.SpreadType(req.SpreadType),
		Category:    req.Category,
		UserContext: req.UserContext,
		Language:    req.Language,
	}, req.UserID)

	for event := range events {
		if _, err := w.Write([]byte(event.SSE())); err != nil {
			// Client went away; background persistence keeps running.
			return
		}
		flusher.Flush()
	}
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Cache     orchestrator.CacheHealth `json:"cache"`
	Providers orchestrator.Status      `json:"providers"`
	RAGCache  any                      `json:"rag_cache"`
}

// handleHealth aggregates cache health, provider status, and RAG cache
// stats.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Cache:    s.cache.Health(r.Context()),
		RAGCache: s.retriever.CacheStats(),
	}
	if orch, err := s.orchSvc.Get(r.Context()); err == nil {
		resp.Providers = orch.ProviderStatus()
	} else {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSettingsReload is the administrative invalidation hook: the next
// request rebuilds the orchestrator from fresh settings, and the RAG
// cache is cleared alongside.
func (s *Server) handleSettingsReload(w http.ResponseWriter, r *http.Request) {
	s.orchSvc.Invalidate()
	s.retriever.ClearCache()

	// Rebuild eagerly so a broken settings change surfaces here rather
	// than on the next reading.
	if _, err := s.orchSvc.Get(context.WithoutCancel(r.Context())); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
