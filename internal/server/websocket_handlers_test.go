package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"dailyshot/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the harness app on a loopback port for real websocket clients.
func (h *harness) listen() string {
	h.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(h.t, err)

	go func() { _ = h.app.Listener(ln) }()
	h.t.Cleanup(func() {
		_ = h.s.hub.Shutdown(context.Background())
		_ = h.app.ShutdownWithTimeout(2 * time.Second)
	})
	return ln.Addr().String()
}

func readEvent(t *testing.T, conn *websocket.Conn) notifications.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev notifications.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestLiveFeed(t *testing.T) {
	h := newHarness(t)
	addr := h.listen()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	hello := readEvent(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.Equal(t, map[string]any{"date": "2024-03-16"}, hello.Payload)

	require.Eventually(t, func() bool { return h.s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	author := h.fx.User("author")
	require.Equal(t, http.StatusCreated, h.call(http.MethodPost, "/api/posts", map[string]string{
		"title":     "Live",
		"image_url": "/uploads/live.jpg",
	}, h.token(author), nil))

	ev := readEvent(t, conn)
	assert.Equal(t, "post_created", ev.Type)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Live", payload["title"])
}

func TestLiveFeedRequiresUpgrade(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUpgradeRequired, h.call(http.MethodGet, "/api/ws", nil, "", nil))
}
