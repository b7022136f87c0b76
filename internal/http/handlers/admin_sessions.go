package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// SessionInspector loads and resets dialogue sessions.
type SessionInspector interface {
	Load(ctx context.Context, sessionID string) (conversation.Session, error)
	Reset(ctx context.Context, sessionID string) error
}

// TranscriptReader reads and clears a session's chat log.
type TranscriptReader interface {
	List(ctx context.Context, sessionID string, limit int64) ([]conversation.TranscriptEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

// AdminSessionsHandler lets the shop owner look at a stuck chat and reset it.
type AdminSessionsHandler struct {
	sessions   SessionInspector
	transcript TranscriptReader
	logger     *logging.Logger
}

func NewAdminSessionsHandler(sessions SessionInspector, transcript TranscriptReader, logger *logging.Logger) *AdminSessionsHandler {
	if sessions == nil {
		panic("handlers: session inspector required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{sessions: sessions, transcript: transcript, logger: logger}
}

// SessionResponse is the admin view of one session.
type SessionResponse struct {
	Session       conversation.Session `json:"session"`
	MissingFields []conversation.Field `json:"missing_fields"`
}

// GetSession handles GET /admin/sessions/{sessionID}
func (h *AdminSessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	sess, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		h.logger.Error("admin: load session failed", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	missing := conversation.MissingFields(sess)
	if missing == nil {
		missing = []conversation.Field{}
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess, MissingFields: missing})
}

// ResetSession handles DELETE /admin/sessions/{sessionID}
func (h *AdminSessionsHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	if err := h.sessions.Reset(r.Context(), id); err != nil {
		h.logger.Error("admin: reset session failed", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	if r.URL.Query().Get("transcript") == "true" && h.transcript != nil {
		if err := h.transcript.Clear(r.Context(), id); err != nil {
			h.logger.Warn("admin: clear transcript failed", "error", err, "session_id", id)
		}
	}
	h.logger.Info("admin: session reset", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetTranscript handles GET /admin/sessions/{sessionID}/transcript
func (h *AdminSessionsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if h.transcript == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": []conversation.TranscriptEntry{}})
		return
	}
	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.transcript.List(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("admin: load transcript failed", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if entries == nil {
		entries = []conversation.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": entries})
}
