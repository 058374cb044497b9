// Package order defines the order aggregate and its status lifecycle.
package order

import (
	"fmt"
	"strings"

	"github.com/Strob0t/linkshop/internal/domain"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusFulfilling Status = "FULFILLING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
	StatusDisputed   Status = "DISPUTED"

	// StatusAbandoned marks an order recorded from a stale checkout draft.
	// It sits outside the transition graph.
	StatusAbandoned Status = "ABANDONED"
)

// Statuses lists every state of the transition graph in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusPaid,
	StatusFulfilling,
	StatusShipped,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
	StatusDisputed,
}

// transitions holds the allowed outgoing edges per state. COMPLETED keeps
// REFUNDED and DISPUTED for post-fulfillment refunds and chargebacks.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusFulfilling, StatusCancelled, StatusRefunded, StatusDisputed},
	StatusFulfilling: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusCompleted, StatusRefunded, StatusDisputed},
	StatusCompleted:  {StatusRefunded, StatusDisputed},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
	StatusDisputed:   nil,
}

// paidEquivalent is the set of statuses counted as revenue.
var paidEquivalent = map[Status]bool{
	StatusPaid:       true,
	StatusFulfilling: true,
	StatusShipped:    true,
	StatusCompleted:  true,
}

// ParseStatus converts a case-insensitive string into a known Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if st == StatusAbandoned {
		return st, nil
	}
	if _, ok := transitions[st]; !ok {
		return "", domain.Validationf("unknown order status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether s has no outgoing edges.
func (s Status) IsTerminal() bool {
	edges, known := transitions[s]
	return !known || len(edges) == 0
}

// IsPaidEquivalent reports whether orders in s count toward revenue.
func (s Status) IsPaidEquivalent() bool {
	return paidEquivalent[s]
}

// AllowedTransitions returns a copy of the outgoing edges of from.
func AllowedTransitions(from Status) []Status {
	edges := transitions[from]
	out := make([]Status, len(edges))
	copy(out, edges)
	return out
}

// IsValidTransition reports whether an order may move from one status to another.
// Staying in the same status is always valid.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From     Status
	To       Status
	Allowed  []Status
	Terminal bool
}

func (e *TransitionError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("order is in terminal status %s and cannot move to %s", e.From, e.To)
	}
	if e.From == e.To {
		return fmt.Sprintf("order is already %s; allowed: %s", e.From, joinStatuses(e.Allowed))
	}
	return fmt.Sprintf("cannot move order from %s to %s; allowed: %s", e.From, e.To, joinStatuses(e.Allowed))
}

// Unwrap makes a TransitionError match domain.ErrValidation.
func (e *TransitionError) Unwrap() error {
	return domain.ErrValidation
}

// GetTransitionError returns nil when the transition is valid, otherwise a
// *TransitionError naming the current status and its allowed targets.
func GetTransitionError(from, to Status) error {
	if IsValidTransition(from, to) {
		return nil
	}
	return &TransitionError{
		From:     from,
		To:       to,
		Allowed:  AllowedTransitions(from),
		Terminal: from.IsTerminal(),
	}
}

// GetConfirmPaymentError returns nil when payment may be confirmed for an
// order in status from. Only PENDING qualifies, so an order already PAID is
// rejected even though staying in place is otherwise valid.
func GetConfirmPaymentError(from Status) error {
	if from == StatusPending {
		return nil
	}
	return &TransitionError{
		From:     from,
		To:       StatusPaid,
		Allowed:  AllowedTransitions(from),
		Terminal: from.IsTerminal(),
	}
}

func joinStatuses(ss []Status) string {
	if len(ss) == 0 {
		return "none"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
