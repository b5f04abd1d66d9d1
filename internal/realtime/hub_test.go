package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestHub_RegisterSendAndDisconnect(t *testing.T) {
	h := newHarness(t, true)
	h.user(t, 1, domain.RoleUser)
	h.user(t, 2, domain.RoleUser)
	hub := NewHub(h.router, Options{MaxMessageBytes: 64 << 10})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	alice := dial(t, srv, nil)
	bob := dial(t, srv, nil)

	require.NoError(t, alice.WriteJSON(Frame{Event: EventRegister, Data: 1}))
	require.Equal(t, "1", string(readUntil(t, alice, "user_connected").Data))
	require.NoError(t, bob.WriteJSON(Frame{Event: EventRegister, Data: map[string]any{"userId": "2"}}))
	require.Equal(t, "2", string(readUntil(t, alice, "user_connected").Data))

	require.NoError(t, alice.WriteJSON(Frame{Event: EventSendMessage, Data: map[string]any{
		"sender_id": 1, "receiver_id": 2, "message": "hello",
	}}))
	f := readUntil(t, bob, EventGetSubChat)
	var views []domain.MessageView
	require.NoError(t, json.Unmarshal(f.Data, &views))
	require.Len(t, views, 1)
	require.False(t, views[0].IsMine)
	require.True(t, views[0].IsDelivered)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return !h.reg.IsRegistered(2) }, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, "2", string(readUntil(t, alice, "user_disconnected").Data))
}

func TestHub_RateLimitedEventsReportError(t *testing.T) {
	h := newHarness(t, true)
	hub := NewHub(h.router, Options{EventRPS: 0.001, EventBurst: 1})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dial(t, srv, nil)
	require.NoError(t, c.WriteJSON(Frame{Event: EventTyping, Data: map[string]any{"sender_id": 1, "receiver_id": 2}}))
	require.NoError(t, c.WriteJSON(Frame{Event: EventTyping, Data: map[string]any{"sender_id": 1, "receiver_id": 2}}))

	f := readUntil(t, c, EventError)
	require.JSONEq(t, `{"message":"Too many events"}`, string(f.Data))
}

func TestHub_CheckOrigin(t *testing.T) {
	h := newHarness(t, true)
	hub := NewHub(h.router, Options{AllowedOrigins: []string{"https://app.example"}})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, http.Header{"Origin": {"https://app.example"}})
}

func TestHub_Shutdown(t *testing.T) {
	h := newHarness(t, true)
	h.user(t, 1, domain.RoleUser)
	hub := NewHub(h.router, Options{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dial(t, srv, nil)
	require.NoError(t, c.WriteJSON(Frame{Event: EventRegister, Data: 1}))
	readUntil(t, c, "user_connected")

	hub.Shutdown(context.Background())
	require.False(t, h.reg.IsRegistered(1))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestHub_Stats(t *testing.T) {
	h := newHarness(t, true)
	h.user(t, 1, domain.RoleUser)
	h.user(t, 9, domain.RoleAdmin)
	hub := NewHub(h.router, Options{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	require.Equal(t, Stats{}, hub.Stats())

	user := dial(t, srv, nil)
	require.NoError(t, user.WriteJSON(Frame{Event: EventRegister, Data: 1}))
	readUntil(t, user, "user_connected")
	admin := dial(t, srv, nil)
	require.NoError(t, admin.WriteJSON(Frame{Event: EventRegister, Data: 9}))
	readUntil(t, admin, "user_connected")
	dial(t, srv, nil)

	require.NoError(t, user.WriteJSON(Frame{Event: EventFileChunk, Data: map[string]any{
		"sender_id": 1, "receiver_id": 9, "fileName": "big.bin", "chunk": "cGFydA==",
	}}))

	want := Stats{Clients: 3, Connections: 3, Users: 2, Admins: 1, UploadsInFlight: 1}
	require.Eventually(t, func() bool { return hub.Stats() == want }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, user.Close())
	require.Eventually(t, func() bool {
		st := hub.Stats()
		return st.Clients == 2 && st.Users == 1 && st.UploadsInFlight == 0
	}, 3*time.Second, 20*time.Millisecond)
}
