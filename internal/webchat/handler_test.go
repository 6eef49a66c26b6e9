package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/internal/transcript"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// echoEngine records requests and answers with a fixed reply.
type echoEngine struct {
	mu       sync.Mutex
	requests []conversation.MessageRequest
}

func (e *echoEngine) HandleMessage(_ context.Context, req conversation.MessageRequest) (conversation.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	return conversation.Reply{Text: "got: " + req.Message, Status: conversation.StatusNeedsInfo}, nil
}

func (e *echoEngine) last() conversation.MessageRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

// memTranscript stores turns in memory.
type memTranscript struct {
	mu    sync.Mutex
	turns map[string][]transcript.Message
}

func newMemTranscript() *memTranscript {
	return &memTranscript{turns: make(map[string][]transcript.Message)}
}

func (m *memTranscript) Append(_ context.Context, tenantID, userID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "|" + userID
	m.turns[key] = append(m.turns[key], transcript.Message{Role: role, Content: content, CreatedAt: time.Now()})
	return nil
}

func (m *memTranscript) Recent(_ context.Context, tenantID, userID string, limit int) ([]transcript.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.turns[tenantID+"|"+userID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]transcript.Message(nil), msgs...), nil
}

func newTestHandler(cfg Config) (*Handler, *echoEngine, *memTranscript) {
	engine := &echoEngine{}
	tr := newMemTranscript()
	if cfg.DefaultTenantID == "" {
		cfg.DefaultTenantID = "garage_michel"
	}
	return NewHandler(engine, tr, cfg, logging.New("error")), engine, tr
}

func postChat(h *Handler, query, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)
	return rec
}

func TestHandleChatRepliesAndLogsTurns(t *testing.T) {
	h, engine, tr := newTestHandler(Config{})

	rec := postChat(h, "?clientID=garage_a&requestID=u1", `{"message":"  bonjour  "}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "got: bonjour", resp["reply"])
	assert.Equal(t, "needs_info", resp["status"])

	req := engine.last()
	assert.Equal(t, "garage_a", req.TenantID)
	assert.Equal(t, "u1", req.UserID)

	msgs, _ := tr.Recent(context.Background(), "garage_a", "u1", 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, "bonjour", msgs[0].Content)
	assert.Equal(t, transcript.RoleAssistant, msgs[1].Role)
}

func TestHandleChatLoadsHistoryWhenOmitted(t *testing.T) {
	h, engine, tr := newTestHandler(Config{HistoryTurns: 2})
	ctx := context.Background()
	require.NoError(t, tr.Append(ctx, "garage_a", "u1", transcript.RoleUser, "one"))
	require.NoError(t, tr.Append(ctx, "garage_a", "u1", transcript.RoleAssistant, "two"))
	require.NoError(t, tr.Append(ctx, "garage_a", "u1", transcript.RoleUser, "three"))

	postChat(h, "?clientID=garage_a&requestID=u1", `{"message":"four"}`)
	assert.Equal(t, []conversation.ChatMessage{
		{Role: transcript.RoleAssistant, Content: "two"},
		{Role: transcript.RoleUser, Content: "three"},
	}, engine.last().History)

	// An explicit (even empty) history is passed through untouched.
	postChat(h, "?clientID=garage_a&requestID=u1", `{"message":"five","history":[]}`)
	assert.Empty(t, engine.last().History)
	assert.NotNil(t, engine.last().History)
}

func TestHandleChatPinsTenant(t *testing.T) {
	h, engine, _ := newTestHandler(Config{DefaultTenantID: "garage_michel", PinTenant: true})

	postChat(h, "?clientID=someone_else&requestID=u1", `{"message":"hi"}`)
	assert.Equal(t, "garage_michel", engine.last().TenantID)
}

func TestHandleChatBodyIdentifiers(t *testing.T) {
	h, engine, _ := newTestHandler(Config{})

	postChat(h, "", `{"message":"hi","client_id":"garage_b","user_id":"u9"}`)
	assert.Equal(t, "garage_b", engine.last().TenantID)
	assert.Equal(t, "u9", engine.last().UserID)
}

func TestHandleChatValidation(t *testing.T) {
	h, engine, _ := newTestHandler(Config{MaxMessageLength: 10})

	tests := []struct {
		name  string
		query string
		body  string
		want  string
	}{
		{"bad json", "?requestID=u1", `{"message":`, "invalid request body"},
		{"empty message", "?requestID=u1", `{"message":"   "}`, "message is required"},
		{"too long", "?requestID=u1", `{"message":"` + strings.Repeat("é", 11) + `"}`, "message is too long"},
		{"missing user", "", `{"message":"hi"}`, "user id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(h, tt.query, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
	assert.Empty(t, engine.requests)
}

func TestHandleChatAcceptsMaxLengthInRunes(t *testing.T) {
	h, _, _ := newTestHandler(Config{MaxMessageLength: 10})

	rec := postChat(h, "?requestID=u1", `{"message":"`+strings.Repeat("é", 10)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	h, _, tr := newTestHandler(Config{})
	require.NoError(t, tr.Append(context.Background(), "garage_a", "u1", transcript.RoleUser, "hello"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?clientID=garage_a&requestID=u1", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello", resp.Messages[0].Content)

	rec = httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest(http.MethodGet, "/chat/history?clientID=garage_a", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWidgetJS(t *testing.T) {
	h, _, _ := newTestHandler(Config{})

	rec := httptest.NewRecorder()
	h.HandleWidgetJS(rec, httptest.NewRequest(http.MethodGet, "/widget.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/chat?clientID=")
}

func TestHandleDemoEmbedsWidgetForClient(t *testing.T) {
	h, _, _ := newTestHandler(Config{})

	rec := httptest.NewRecorder()
	h.HandleDemo(rec, httptest.NewRequest(http.MethodGet, "/demo?clientID=garage_paul", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<script src="/widget.js" data-client-id="garage_paul"></script>`)

	rec = httptest.NewRecorder()
	h.HandleDemo(rec, httptest.NewRequest(http.MethodGet, "/demo?clientID=%22%3E%3Cscript%3E", nil))
	assert.NotContains(t, rec.Body.String(), `"><script>`)

	rec = httptest.NewRecorder()
	h.HandleDemo(rec, httptest.NewRequest(http.MethodGet, "/demo", nil))
	assert.Contains(t, rec.Body.String(), `data-client-id="garage_michel"`)
}

func TestWebSocketConversation(t *testing.T) {
	h, engine, tr := newTestHandler(Config{})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?client=garage_a&user=u1"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "u1", session.UserID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "rdv demain"}))
	var reply OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &reply))
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, "got: rdv demain", reply.Text)
	assert.Equal(t, "needs_info", reply.Status)

	assert.Equal(t, "garage_a", engine.last().TenantID)
	msgs, _ := tr.Recent(context.Background(), "garage_a", "u1", 10)
	assert.Len(t, msgs, 2)
}

func TestWebSocketAssignsUserID(t *testing.T) {
	h, _, _ := newTestHandler(Config{})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))
	assert.Len(t, session.UserID, 32)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "   "}))
	var errFrame OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &errFrame))
	assert.Equal(t, "error", errFrame.Type)
}
