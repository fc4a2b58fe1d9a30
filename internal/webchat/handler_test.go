package webchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/lmvieira/secretaria-virtual/internal/conversation"
)

type fakeResponder struct {
	reply   string
	err     error
	history []conversation.ChatMessage

	gotSession string
	gotText    string
}

func (f *fakeResponder) ProcessMessage(ctx context.Context, conversationID, text string) (string, error) {
	f.gotSession = conversationID
	f.gotText = text
	return f.reply, f.err
}

func (f *fakeResponder) History(ctx context.Context, conversationID string) ([]conversation.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeResponder) Greeting() string {
	return conversation.Greeting
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func newWSServer(responder *fakeResponder) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(NewHandler(responder, nil).HandleWebSocket))
}

func TestNewConnectionSendsSessionAndGreeting(t *testing.T) {
	responder := &fakeResponder{reply: "ok"}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "")

	session := receive(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.NotEmpty(t, session.SessionID)

	greeting := receive(t, conn)
	assert.Equal(t, "message", greeting.Type)
	assert.Equal(t, "assistant", greeting.Role)
	assert.Contains(t, greeting.Text, "secretária virtual")
}

func TestMessageRoundTrip(t *testing.T) {
	responder := &fakeResponder{reply: "Consulta agendada com sucesso! ID: 1"}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc123")
	receive(t, conn) // session

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "quero marcar uma consulta"}))

	typing := receive(t, conn)
	assert.Equal(t, "typing", typing.Type)

	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, responder.reply, reply.Text)

	assert.Equal(t, "abc123", responder.gotSession)
	assert.Equal(t, "quero marcar uma consulta", responder.gotText)
}

func TestResumedSessionReplaysHistory(t *testing.T) {
	responder := &fakeResponder{history: []conversation.ChatMessage{
		{Role: conversation.ChatRoleUser, Content: "oi"},
		{Role: conversation.ChatRoleAssistant, Content: "Olá! Como posso ajudar?"},
	}}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc123")

	session := receive(t, conn)
	assert.Equal(t, "abc123", session.SessionID)

	history := receive(t, conn)
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "oi", history.Messages[0].Text)
	assert.Equal(t, "assistant", history.Messages[1].Role)
}

func TestTurnErrorSendsErrorMessage(t *testing.T) {
	responder := &fakeResponder{err: errors.New("redis down")}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc123")
	receive(t, conn) // session

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "oi"}))
	receive(t, conn) // typing

	errMsg := receive(t, conn)
	assert.Equal(t, "error", errMsg.Type)
	assert.Contains(t, errMsg.Text, "Desculpe")
}

func TestPingPong(t *testing.T) {
	responder := &fakeResponder{}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc123")
	receive(t, conn) // session

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	pong := receive(t, conn)
	assert.Equal(t, "pong", pong.Type)
}

func TestDuplicateConnectionRejected(t *testing.T) {
	responder := &fakeResponder{reply: "resposta"}
	srv := newWSServer(responder)
	defer srv.Close()

	first := dialWS(t, srv, "?session=abc123")
	receive(t, first) // session

	second := dialWS(t, srv, "?session=abc123")
	rejected := receive(t, second)
	assert.Equal(t, "error", rejected.Type)
	assert.Contains(t, rejected.Text, "outra janela")

	// The first connection keeps working.
	require.NoError(t, websocket.JSON.Send(first, InboundMessage{Type: "message", Text: "oi"}))
	receive(t, first) // typing
	reply := receive(t, first)
	assert.Equal(t, "resposta", reply.Text)
}

func TestSessionFreedAfterDisconnect(t *testing.T) {
	responder := &fakeResponder{}
	srv := newWSServer(responder)
	defer srv.Close()

	first := dialWS(t, srv, "?session=abc123")
	receive(t, first) // session
	require.NoError(t, first.Close())

	var second *websocket.Conn
	require.Eventually(t, func() bool {
		conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws?session=abc123", "", srv.URL)
		if err != nil {
			return false
		}
		var msg OutboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil || msg.Type != "session" {
			_ = conn.Close()
			return false
		}
		second = conn
		return true
	}, time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = second.Close() })
}

func TestBlankMessagesIgnored(t *testing.T) {
	responder := &fakeResponder{reply: "resposta"}
	srv := newWSServer(responder)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc123")
	receive(t, conn) // session

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "   "}))
	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "de verdade"}))

	typing := receive(t, conn)
	assert.Equal(t, "typing", typing.Type)
	assert.Equal(t, "de verdade", responder.gotText)
}
