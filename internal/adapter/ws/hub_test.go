package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("tenant"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, tenantID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?tenant=" + tenantID
	c, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)
	require.NotNil(t, hub)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub(nil)
	hub.BroadcastEvent(context.Background(), "t1", broadcast.EventOrderCreated, map[string]string{"order_id": "o1"})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub(nil)
	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "t1", "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub(nil)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel, tenantID: "t1"})
}

func TestHub_DeliversOnlyToTenant(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub)

	a := dial(t, srv, "tenant-a")
	b := dial(t, srv, "tenant-b")
	waitForConnections(t, hub, 2)

	hub.BroadcastEvent(context.Background(), "tenant-a", broadcast.EventOrderStatusChanged,
		map[string]string{"order_id": "o1", "to": "PAID"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := a.Read(ctx)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, broadcast.EventOrderStatusChanged, msg.Type)
	assert.JSONEq(t, `{"order_id":"o1","to":"PAID"}`, string(msg.Payload))

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer shortCancel()
	_, _, err = b.Read(shortCtx)
	assert.Error(t, err, "tenant-b must not receive tenant-a events")
}

func TestHub_DisconnectRemovesConnection(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub)

	c := dial(t, srv, "tenant-a")
	waitForConnections(t, hub, 1)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	waitForConnections(t, hub, 0)
}
