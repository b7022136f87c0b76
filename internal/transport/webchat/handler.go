// Package webchat serves the browser chat over a WebSocket with an HTTP
// fallback for posting messages and reading history.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/transport"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
	"golang.org/x/net/websocket"
)

// ErrNotConnected means the visitor has no open socket to push a reply to.
var ErrNotConnected = errors.New("webchat: session not connected")

// History reads a session's chat log.
type History interface {
	List(ctx context.Context, sessionID string, limit int64) ([]conversation.TranscriptEntry, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	publisher transport.Publisher
	history   History
	logger    *logging.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*wsConn // session id -> active connection
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one transcript line as the widget renders it.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler panics without a publisher. history may be nil.
func NewHandler(publisher transport.Publisher, history History, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("webchat: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		publisher: publisher,
		history:   history,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*wsConn),
	}
}

// SessionID builds the conversation session id for a visitor.
func SessionID(visitor string) string {
	return conversation.SessionKey(conversation.ChannelWebchat, visitor)
}

func generateVisitorID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	visitor := strings.TrimSpace(r.URL.Query().Get("session"))
	if visitor == "" {
		visitor = generateVisitorID()
	}
	sessionID := SessionID(visitor)
	wsc := &wsConn{conn: conn}

	_ = wsc.send(OutboundMessage{Type: "session", SessionID: visitor})
	if history := h.load(r.Context(), sessionID, 50); len(history) > 0 {
		_ = wsc.send(OutboundMessage{Type: "history", Messages: history})
	}

	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		switch {
		case msg.Type == "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case msg.Type == "message" && strings.TrimSpace(msg.Text) != "":
			_ = wsc.send(OutboundMessage{Type: "typing"})
			if err := h.publish(r.Context(), sessionID, msg.ID, msg.Text); err != nil {
				_ = wsc.send(OutboundMessage{Type: "error", Text: "No pudimos procesar tu mensaje. Intenta de nuevo."})
			}
		}
	}
}

func (h *Handler) publish(ctx context.Context, sessionID, messageID, text string) error {
	err := h.publisher.Publish(ctx, conversation.InboundMessage{
		SessionID:  sessionID,
		Channel:    conversation.ChannelWebchat,
		MessageID:  messageID,
		Text:       text,
		ReceivedAt: h.now().UTC(),
	})
	if err != nil {
		h.logger.Error("webchat: failed to enqueue message", "error", err, "session_id", sessionID)
	}
	return err
}

// SendText pushes a bot reply to the visitor's open socket.
func (h *Handler) SendText(_ context.Context, sessionID, text string) error {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return wsc.send(OutboundMessage{
		Type:      "message",
		Role:      conversation.RoleBot,
		Text:      text,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Connected reports whether sessionID has an open socket.
func (h *Handler) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// HandleMessage is the HTTP fallback for sending messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		MessageID string `json:"message_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateVisitorID()
	}

	if err := h.publish(r.Context(), SessionID(req.SessionID), req.MessageID, req.Text); err != nil {
		http.Error(w, "failed to queue message", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"session_id": req.SessionID,
	})
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	visitor := strings.TrimSpace(r.URL.Query().Get("session"))
	if visitor == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []HistoryMessage{}})
		return
	}

	entries, err := h.history.List(r.Context(), SessionID(visitor), 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": toHistory(entries)})
}

func (h *Handler) load(ctx context.Context, sessionID string, limit int64) []HistoryMessage {
	if h.history == nil {
		return nil
	}
	entries, err := h.history.List(ctx, sessionID, limit)
	if err != nil {
		h.logger.Warn("webchat: history unavailable", "error", err, "session_id", sessionID)
		return nil
	}
	return toHistory(entries)
}

func toHistory(entries []conversation.TranscriptEntry) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryMessage{
			Role:      e.Role,
			Text:      e.Text,
			Timestamp: e.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var _ conversation.Sender = (*Handler)(nil)
