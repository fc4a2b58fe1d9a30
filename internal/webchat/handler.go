// Package webchat exposes the secretary over a browser WebSocket. Each
// connection is one patient session; replies are produced synchronously by
// the conversation service and pushed back on the same socket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/lmvieira/secretaria-virtual/internal/conversation"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

// Responder answers one user turn and replays stored history.
type Responder interface {
	ProcessMessage(ctx context.Context, conversationID, text string) (string, error)
	History(ctx context.Context, conversationID string) ([]conversation.ChatMessage, error)
	Greeting() string
}

// Handler manages web chat connections and messages.
type Handler struct {
	responder Responder
	logger    *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"` // "assistant" or "user"
	SessionID string           `json:"session_id,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history replay.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a web chat handler.
func NewHandler(responder Responder, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder: responder,
		logger:    logger,
		sessions:  make(map[string]*wsConn),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
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
	sessionID := r.URL.Query().Get("session")
	resuming := sessionID != ""
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	// One live socket per session. A second tab gets turned away instead of
	// interleaving replies with the first.
	wsc := &wsConn{conn: conn}
	h.mu.Lock()
	if _, active := h.sessions[sessionID]; active {
		h.mu.Unlock()
		h.logger.Info("webchat: duplicate connection rejected", "session_id", sessionID)
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type: "error",
			Text: "Esta conversa já está aberta em outra janela.",
		})
		return
	}
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
	}()

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:      "session",
		SessionID: sessionID,
	})

	// Resumed sessions get their transcript back; new ones get the greeting.
	if resuming {
		if msgs, err := h.responder.History(r.Context(), sessionID); err == nil && len(msgs) > 0 {
			history := make([]HistoryMessage, 0, len(msgs))
			for _, m := range msgs {
				history = append(history, HistoryMessage{Role: m.Role, Text: m.Content})
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
		}
	} else {
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type: "message",
			Role: "assistant",
			Text: h.responder.Greeting(),
		})
	}

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		h.processMessage(r.Context(), conn, sessionID, msg.Text)
	}
}

func (h *Handler) processMessage(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

	reply, err := h.responder.ProcessMessage(ctx, sessionID, text)
	if err != nil {
		h.logger.Error("webchat: turn failed", "error", err, "session_id", sessionID)
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type: "error",
			Text: "Desculpe, algo deu errado. Tente novamente.",
		})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type: "message",
		Role: "assistant",
		Text: reply,
	})
}
