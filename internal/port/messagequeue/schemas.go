package messagequeue

import (
	"errors"

	"github.com/Strob0t/linkshop/internal/domain/order"
)

// OrderCreatedPayload is the schema for orders.created messages.
type OrderCreatedPayload = order.CreatedEvent

// OrderStatusChangedPayload is the schema for orders.status_changed messages.
type OrderStatusChangedPayload = order.StatusChangedEvent

// TenantInvalidatedPayload is the schema for tenants.invalidated messages.
type TenantInvalidatedPayload struct {
	TenantID string   `json:"tenant_id"`
	Keys     []string `json:"keys"`
}

// schema returns an empty payload for subject and a check for its required
// fields, or nil for subjects without a schema.
func schema(subject string) (any, func() error) {
	switch subject {
	case SubjectOrderCreated:
		p := &OrderCreatedPayload{}
		return p, func() error {
			return requireIDs(p.TenantID, p.OrderID)
		}
	case SubjectOrderStatusChanged:
		p := &OrderStatusChangedPayload{}
		return p, func() error {
			if err := requireIDs(p.TenantID, p.OrderID); err != nil {
				return err
			}
			if _, err := order.ParseStatus(string(p.To)); err != nil {
				return err
			}
			return nil
		}
	case SubjectTenantInvalidated:
		p := &TenantInvalidatedPayload{}
		return p, func() error {
			if p.TenantID == "" {
				return errors.New("tenant_id is required")
			}
			if len(p.Keys) == 0 {
				return errors.New("keys are required")
			}
			return nil
		}
	}
	return nil, nil
}

func requireIDs(tenantID, orderID string) error {
	if tenantID == "" {
		return errors.New("tenant_id is required")
	}
	if orderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}
