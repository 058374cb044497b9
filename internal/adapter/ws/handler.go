// Package ws implements the WebSocket adapter for the live admin order feed.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection bound to one tenant.
type conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	tenantID string
}

// Hub tracks admin connections per tenant and fans events out to them.
type Hub struct {
	mu             sync.RWMutex
	conns          map[string]map[*conn]struct{}
	originPatterns []string
}

// NewHub creates a hub accepting upgrades from the given origin patterns
// (host globs, see websocket.AcceptOptions). Same-origin requests are
// always accepted.
func NewHub(originPatterns []string) *Hub {
	return &Hub{
		conns:          make(map[string]map[*conn]struct{}),
		originPatterns: originPatterns,
	}
}

// Serve upgrades the request and registers the connection for tenantID.
// The caller authenticates the admin and supplies the tenant. Serve returns
// once the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel, tenantID: tenantID}
	h.add(c)
	slog.InfoContext(ctx, "websocket connected", "remote", r.RemoteAddr)

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	// The feed is one-way; reading detects disconnects and consumes pings.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// BroadcastEvent marshals payload and sends it to every connection of tenantID.
func (h *Hub) BroadcastEvent(ctx context.Context, tenantID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.BroadcastToTenant(ctx, tenantID, Message{Type: eventType, Payload: data})
}

// BroadcastToTenant sends msg to every connection of tenantID.
func (h *Hub) BroadcastToTenant(ctx context.Context, tenantID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[tenantID]))
	for c := range h.conns[tenantID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.DebugContext(ctx, "websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.tenantID]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[c.tenantID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[c.tenantID]
	if _, ok := set[c]; !ok {
		return
	}
	c.cancel()
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.tenantID)
	}
	slog.Info("websocket disconnected", "tenant_id", c.tenantID)
}
