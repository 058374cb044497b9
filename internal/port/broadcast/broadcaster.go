// Package broadcast defines the port for pushing real-time events to the
// admin clients of one tenant.
package broadcast

import "context"

// Event types sent to admin clients.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Broadcaster sends real-time events to the connected clients of a tenant.
// Clients of other tenants never receive them.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, tenantID, eventType string, payload any)
}
