// Package webchat exposes the booking assistant to the embeddable chat widget,
// over plain JSON POSTs and over a websocket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/internal/transcript"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	defaultMaxMessageLength = 2000
	defaultTurnTimeout      = 30 * time.Second
)

// Engine answers one chat message.
type Engine interface {
	HandleMessage(ctx context.Context, req conversation.MessageRequest) (conversation.Reply, error)
}

// TranscriptStore logs chat turns and returns the recent ones.
type TranscriptStore interface {
	Append(ctx context.Context, tenantID, userID, role, content string) error
	Recent(ctx context.Context, tenantID, userID string, limit int) ([]transcript.Message, error)
}

// Config controls tenant resolution and input limits.
type Config struct {
	DefaultTenantID string
	// PinTenant serves every request for DefaultTenantID whatever the widget sends.
	PinTenant        bool
	MaxMessageLength int
	HistoryTurns     int
	TurnTimeout      time.Duration
}

// Handler serves the chat endpoints.
type Handler struct {
	engine     Engine
	transcript TranscriptStore
	cfg        Config
	logger     *logging.Logger
	widgetJS   []byte
}

// InboundMessage is a websocket frame from the widget.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is a websocket frame to the widget.
type OutboundMessage struct {
	Type   string `json:"type"` // "session", "reply", "pong", "error"
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// HistoryMessage is one turn in a history response.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type chatRequest struct {
	Message  string                     `json:"message"`
	History  []conversation.ChatMessage `json:"history"`
	ClientID string                     `json:"client_id"`
	UserID   string                     `json:"user_id"`
}

var (
	errEmptyMessage   = errors.New("message is required")
	errMessageTooLong = errors.New("message is too long")
	errMissingUser    = errors.New("user id is required")
	errMissingTenant  = errors.New("client id is required")
)

// NewHandler creates the handler. store may be nil.
func NewHandler(engine Engine, store TranscriptStore, cfg Config, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webchat: engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxMessageLength
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = transcript.DefaultRecentLimit
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	return &Handler{
		engine:     engine,
		transcript: store,
		cfg:        cfg,
		logger:     logger,
		widgetJS:   widgetJS,
	}
}

// tenantFor applies tenant pinning.
func (h *Handler) tenantFor(requested string) string {
	requested = strings.TrimSpace(requested)
	if h.cfg.PinTenant || requested == "" {
		return h.cfg.DefaultTenantID
	}
	return requested
}

func (h *Handler) validate(tenantID, userID, message string) error {
	switch {
	case tenantID == "":
		return errMissingTenant
	case strings.TrimSpace(userID) == "":
		return errMissingUser
	case strings.TrimSpace(message) == "":
		return errEmptyMessage
	case utf8.RuneCountInString(message) > h.cfg.MaxMessageLength:
		return errMessageTooLong
	}
	return nil
}

// respond runs one turn: load history when the client sent none, log the
// user turn, ask the engine and log the reply.
func (h *Handler) respond(ctx context.Context, tenantID, userID, message string, history []conversation.ChatMessage) conversation.Reply {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.TurnTimeout)
	defer cancel()

	log := h.logger.With("tenant_id", tenantID, "user_id", userID)

	if history == nil {
		history = h.loadHistory(ctx, tenantID, userID)
	}
	if err := h.appendTurn(ctx, tenantID, userID, transcript.RoleUser, message); err != nil {
		log.Warn("webchat: failed to log user message", "error", err)
	}

	reply, err := h.engine.HandleMessage(ctx, conversation.MessageRequest{
		TenantID: tenantID,
		UserID:   userID,
		Message:  message,
		History:  history,
	})
	if err != nil {
		log.Warn("webchat: turn completed with error", "error", err)
	}

	if err := h.appendTurn(ctx, tenantID, userID, transcript.RoleAssistant, reply.Text); err != nil {
		log.Warn("webchat: failed to log assistant reply", "error", err)
	}
	return reply
}

func (h *Handler) loadHistory(ctx context.Context, tenantID, userID string) []conversation.ChatMessage {
	if h.transcript == nil {
		return nil
	}
	msgs, err := h.transcript.Recent(ctx, tenantID, userID, h.cfg.HistoryTurns)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "tenant_id", tenantID, "user_id", userID, "error", err)
		return nil
	}
	history := make([]conversation.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, conversation.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history
}

func (h *Handler) appendTurn(ctx context.Context, tenantID, userID, role, content string) error {
	if h.transcript == nil || content == "" {
		return nil
	}
	return h.transcript.Append(ctx, tenantID, userID, role, content)
}

// HandleChat serves POST /chat?clientID=&requestID=.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenantID := h.tenantFor(firstNonEmpty(req.ClientID, r.URL.Query().Get("clientID")))
	userID := strings.TrimSpace(firstNonEmpty(req.UserID, r.URL.Query().Get("requestID")))
	if err := h.validate(tenantID, userID, req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := h.respond(r.Context(), tenantID, userID, strings.TrimSpace(req.Message), req.History)
	writeJSON(w, http.StatusOK, reply)
}

// HandleHistory serves GET /chat/history?clientID=&requestID=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantFor(r.URL.Query().Get("clientID"))
	userID := strings.TrimSpace(r.URL.Query().Get("requestID"))
	if tenantID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "clientID and requestID parameters required")
		return
	}
	if h.transcript == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []HistoryMessage{}})
		return
	}

	msgs, err := h.transcript.Recent(r.Context(), tenantID, userID, h.cfg.HistoryTurns)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

// HandleWebSocket serves GET /chat/ws?client=&user=.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serveWS).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn) {
	r := conn.Request()
	tenantID := h.tenantFor(r.URL.Query().Get("client"))
	if tenantID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing client parameter"})
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		userID = generateUserID()
	}
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", UserID: userID})

	h.logger.Info("webchat: connection opened", "tenant_id", tenantID, "user_id", userID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "tenant_id", tenantID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}

		if err := h.validate(tenantID, userID, msg.Text); err != nil {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: err.Error()})
			continue
		}
		reply := h.respond(r.Context(), tenantID, userID, strings.TrimSpace(msg.Text), nil)
		if err := websocket.JSON.Send(conn, OutboundMessage{
			Type:   "reply",
			Text:   reply.Text,
			Status: string(reply.Status),
		}); err != nil {
			h.logger.Debug("webchat: send failed", "tenant_id", tenantID, "error", err)
			return
		}
	}
}

// HandleWidgetJS serves the embeddable widget script.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

// HandleDemo serves a page embedding the widget for the requested client, or
// the default tenant.
func (h *Handler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	clientID := h.tenantFor(r.URL.Query().Get("clientID"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := demoPage.Execute(w, struct{ ClientID string }{clientID}); err != nil {
		h.logger.Error("failed to render demo page", "error", err)
	}
}

// generateUserID creates a random visitor identifier.
func generateUserID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
