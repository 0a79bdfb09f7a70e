// Package api exposes the orchestration core over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	ctxwindow "github.com/echomind/echomind/internal/context"
	"github.com/echomind/echomind/internal/memory"
	"github.com/echomind/echomind/internal/orchestrator"
	"github.com/echomind/echomind/internal/protocol"
	"github.com/echomind/echomind/internal/store"
)

// Handler holds dependencies for HTTP handlers. The store may be nil when
// PostgreSQL is unavailable; persistence routes answer 503 in that case.
type Handler struct {
	coordinator *orchestrator.Coordinator
	window      *ctxwindow.Manager
	store       *store.Store
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(coordinator *orchestrator.Coordinator, window *ctxwindow.Manager,
	st *store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		window:      window,
		store:       st,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/switch/evaluate", h.evaluateSwitch)
		r.Get("/switches/{userID}", h.listSwitches)

		r.Post("/memory/request", h.memoryRequest)
		r.Post("/memory", h.writeMemory)
		r.Get("/memory/{userID}", h.getMemory)
		r.Post("/memory/emotional", h.appendEmotional)
		r.Get("/memory/emotional/{userID}", h.listEmotional)

		r.Post("/context/fit", h.fitContext)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "echomind"})
}

type evaluateSwitchRequest struct {
	SessionID          string                   `json:"session_id"`
	UserID             string                   `json:"user_id"`
	CurrentAgent       string                   `json:"current_agent"`
	EmotionalState     *protocol.EmotionalState `json:"emotional_state,omitempty"`
	Topics             []string                 `json:"topics,omitempty"`
	CapabilitiesNeeded []protocol.Capability    `json:"capabilities_needed,omitempty"`
	ConversationState  map[string]any           `json:"conversation_state,omitempty"`
	History            []ctxwindow.Message      `json:"history,omitempty"`
	ImportantIndices   []int                    `json:"important_indices,omitempty"`
}

type evaluateSwitchResponse struct {
	ShouldSwitch bool                   `json:"should_switch"`
	TargetAgent  string                 `json:"target_agent,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Handoff      *protocol.AgentMessage `json:"handoff,omitempty"`
	History      []ctxwindow.Message    `json:"history"`
}

func (h *Handler) evaluateSwitch(w http.ResponseWriter, r *http.Request) {
	var req evaluateSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.CurrentAgent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_agent is required"})
		return
	}

	result, err := h.coordinator.EvaluateTurn(r.Context(), orchestrator.Turn{
		SessionID:          req.SessionID,
		UserID:             req.UserID,
		CurrentAgent:       req.CurrentAgent,
		EmotionalState:     req.EmotionalState,
		Topics:             req.Topics,
		CapabilitiesNeeded: req.CapabilitiesNeeded,
		ConversationState:  req.ConversationState,
		History:            req.History,
		ImportantIndices:   req.ImportantIndices,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, evaluateSwitchResponse{
		ShouldSwitch: result.Decision.ShouldSwitch,
		TargetAgent:  result.Decision.TargetAgent,
		Reason:       result.Decision.Reason,
		Handoff:      result.Handoff,
		History:      result.History,
	})
}

func (h *Handler) listSwitches(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.store.ListSwitches(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "switches": records})
}

func (h *Handler) memoryRequest(w http.ResponseWriter, r *http.Request) {
	var msg protocol.AgentMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp := h.coordinator.HandleMemory(r.Context(), msg)
	writeJSON(w, http.StatusOK, resp)
}

type writeMemoryRequest struct {
	UserID     string `json:"user_id"`
	Agent      string `json:"agent"`
	MemoryType string `json:"memory_type"`
	Path       string `json:"path"`
	Data       any    `json:"data"`
}

func (h *Handler) writeMemory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	var req writeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" || req.Agent == "" || req.MemoryType == "" || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id, agent, memory_type and path are required"})
		return
	}

	if err := h.store.WriteMemory(r.Context(), req.UserID, req.Agent, req.MemoryType, req.Path, req.Data); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "memory_type": req.MemoryType, "path": req.Path})
}

func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	userID := chi.URLParam(r, "userID")
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agent query parameter is required"})
		return
	}

	snap, err := h.store.LatestSnapshot(r.Context(), userID, agent)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no memory stored"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type appendEmotionalRequest struct {
	UserID        string   `json:"user_id"`
	Timestamp     string   `json:"timestamp,omitempty"`
	EmotionalTone string   `json:"emotional_tone"`
	Confidence    float64  `json:"confidence"`
	Summary       string   `json:"summary"`
	Tags          []string `json:"tags,omitempty"`
}

func (h *Handler) appendEmotional(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	var req appendEmotionalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	entry := memory.SummaryEntry{
		EmotionalTone: req.EmotionalTone,
		Confidence:    req.Confidence,
		Summary:       req.Summary,
		Tags:          req.Tags,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "timestamp must be RFC3339"})
			return
		}
		entry.Timestamp = ts
	}

	if err := h.store.AppendSummary(r.Context(), req.UserID, entry); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (h *Handler) listEmotional(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store not initialized"})
		return
	}
	userID := chi.URLParam(r, "userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		since = &ts
	}

	entries, err := h.store.TaggedSummaries(r.Context(), userID, since, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "entries": entries})
}

type fitContextRequest struct {
	Messages            []ctxwindow.Message `json:"messages"`
	IncludeSystemPrompt *bool               `json:"include_system_prompt,omitempty"`
	ImportantIndices    []int               `json:"important_indices,omitempty"`
}

func (h *Handler) fitContext(w http.ResponseWriter, r *http.Request) {
	var req fitContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	includeSystem := true
	if req.IncludeSystemPrompt != nil {
		includeSystem = *req.IncludeSystemPrompt
	}

	fitted := h.window.FitToWindow(req.Messages, includeSystem, req.ImportantIndices)
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":         fitted,
		"estimated_tokens": ctxwindow.EstimateMessagesTokens(fitted),
		"effective_limit":  h.window.EffectiveLimit(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
