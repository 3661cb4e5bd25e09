package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Handler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestHandler_BroadcastsToClients(t *testing.T) {
	h := NewHandler(zap.NewNop(), 8)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c1 := dial(t, srv)
	c2 := dial(t, srv)
	waitClients(t, h, 2)

	require.NoError(t, h.Invoke(context.Background(), "content_block:delta", map[string]any{"content": "Hello"}))

	for _, c := range []*websocket.Conn{c1, c2} {
		_ = c.SetReadDeadline(time.Now().Add(time.Second))
		var env transport.Envelope
		require.NoError(t, c.ReadJSON(&env))
		require.Equal(t, "content_block:delta", env.Type)
		require.Equal(t, "Hello", env.Data["content"])
		require.NotEmpty(t, env.ID)
	}
}

func TestHandler_InvokeWithoutClients(t *testing.T) {
	h := NewHandler(zap.NewNop(), 8)
	require.NoError(t, h.Invoke(context.Background(), "tool:pre", nil))
	require.Equal(t, 0, h.Clients())
}

func TestHandler_ClientDisconnectUnsubscribes(t *testing.T) {
	h := NewHandler(zap.NewNop(), 8)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv)
	waitClients(t, h, 1)

	require.NoError(t, c.Close())
	waitClients(t, h, 0)
}

func TestHandler_CloseDisconnectsClients(t *testing.T) {
	h := NewHandler(zap.NewNop(), 8)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv)
	waitClients(t, h, 1)

	h.Close()

	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
