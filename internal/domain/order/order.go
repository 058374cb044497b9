package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
)

// PaymentStatus tracks the payment side of an order independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Actions recorded in the status history.
const (
	ActionCheckout         = "checkout"
	ActionConfirmPayment   = "confirm_payment"
	ActionStartFulfillment = "start_fulfillment"
	ActionShip             = "ship"
	ActionComplete         = "complete"
	ActionCancel           = "cancel"
	ActionRefund           = "refund"
	ActionDispute          = "dispute"
	ActionAbandon          = "abandon"
)

// defaultActions names the history action used when a caller does not supply one.
var defaultActions = map[Status]string{
	StatusPaid:       ActionConfirmPayment,
	StatusFulfilling: ActionStartFulfillment,
	StatusShipped:    ActionShip,
	StatusCompleted:  ActionComplete,
	StatusCancelled:  ActionCancel,
	StatusRefunded:   ActionRefund,
	StatusDisputed:   ActionDispute,
}

// DefaultAction returns the history action for a transition into s.
func DefaultAction(s Status) string {
	return defaultActions[s]
}

// Amounts holds the monetary totals of an order in the tenant's currency.
type Amounts struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Item is one order line. Name and UnitPrice are captured at checkout time.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Contact holds the buyer's contact fields.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// HistoryEntry is one append-only status history record.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	FromStatus Status    `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status"`
	Action     string    `json:"action"`
	By         string    `json:"by"`
}

// Order is a tenant-owned purchase record.
type Order struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	OrderNumber        string          `json:"order_number"`
	UserID             string          `json:"user_id,omitempty"`
	Status             Status          `json:"status"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	PaymentConfirmedBy string          `json:"payment_confirmed_by,omitempty"`
	Amounts            Amounts         `json:"amounts"`
	Items              []Item          `json:"items"`
	Customer           Contact         `json:"customer"`
	CouponCode         string          `json:"coupon_code,omitempty"`
	Note               string          `json:"note,omitempty"`
	StatusHistory      []HistoryEntry  `json:"status_history"`
	Timestamps         StageTimestamps `json:"timestamps"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// StageTimestamps records when the order entered each lifecycle stage.
type StageTimestamps struct {
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	FulfillingAt *time.Time `json:"fulfilling_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
	DisputedAt   *time.Time `json:"disputed_at,omitempty"`
}

func (ts *StageTimestamps) set(s Status, at time.Time) {
	switch s {
	case StatusPaid:
		ts.PaidAt = &at
	case StatusFulfilling:
		ts.FulfillingAt = &at
	case StatusShipped:
		ts.ShippedAt = &at
	case StatusCompleted:
		ts.CompletedAt = &at
	case StatusCancelled:
		ts.CancelledAt = &at
	case StatusRefunded:
		ts.RefundedAt = &at
	case StatusDisputed:
		ts.DisputedAt = &at
	}
}

// Transition describes a requested status change.
type Transition struct {
	To     Status
	Action string
	By     string
	At     time.Time
}

// ApplyTransition validates t against the state machine and mutates o in
// memory: status, stage timestamp, payment fields and one history entry.
// A transition to the current status is a no-op and reports changed=false.
// Nothing is mutated when validation fails.
func (o *Order) ApplyTransition(t Transition) (changed bool, err error) {
	if err := GetTransitionError(o.Status, t.To); err != nil {
		return false, err
	}
	if o.Status == t.To {
		return false, nil
	}
	if t.By == "" {
		return false, domain.Validationf("transition actor is required")
	}
	action := t.Action
	if action == "" {
		action = DefaultAction(t.To)
	}

	from := o.Status
	o.Status = t.To
	o.Timestamps.set(t.To, t.At)
	switch {
	case t.To == StatusPaid:
		o.PaymentStatus = PaymentConfirmed
		o.PaymentConfirmedBy = t.By
	case t.To == StatusRefunded:
		o.PaymentStatus = PaymentRefunded
	}
	o.StatusHistory = append(o.StatusHistory, HistoryEntry{
		Timestamp:  t.At,
		FromStatus: from,
		ToStatus:   t.To,
		Action:     action,
		By:         t.By,
	})
	o.UpdatedAt = t.At
	return true, nil
}

// Clone returns a deep copy of o so callers can mutate it without touching the original.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.StatusHistory = append([]HistoryEntry(nil), o.StatusHistory...)
	return &c
}

// Tracking is the public, lifecycle-only view of an order.
type Tracking struct {
	OrderNumber string          `json:"order_number"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Timestamps  StageTimestamps `json:"timestamps"`
}

// Tracking returns the public lifecycle view of o.
func (o *Order) Tracking() Tracking {
	return Tracking{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		Timestamps:  o.Timestamps,
	}
}

// Summary is the view returned by the public phone search.
type Summary struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Summary returns the search view of o.
func (o *Order) Summary() Summary {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return Summary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Amounts.Total,
		ItemCount:   n,
		CreatedAt:   o.CreatedAt,
	}
}

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}

// StatusChangedEvent is published after every persisted status change.
type StatusChangedEvent struct {
	TenantID    string    `json:"tenant_id"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	By          string    `json:"by"`
	At          time.Time `json:"at"`
}

// CreatedEvent is published after checkout persists a new order.
type CreatedEvent struct {
	TenantID    string          `json:"tenant_id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	At          time.Time       `json:"at"`
}
