package order

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/linkshop/internal/domain"
)

func TestIsValidTransition_Table(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusPending:    {StatusPaid: true, StatusCancelled: true},
		StatusPaid:       {StatusFulfilling: true, StatusCancelled: true, StatusRefunded: true, StatusDisputed: true},
		StatusFulfilling: {StatusShipped: true, StatusCancelled: true},
		StatusShipped:    {StatusCompleted: true, StatusRefunded: true, StatusDisputed: true},
		StatusCompleted:  {StatusRefunded: true, StatusDisputed: true},
		StatusCancelled:  {},
		StatusRefunded:   {},
		StatusDisputed:   {},
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := from == to || allowed[from][to]
			if got := IsValidTransition(from, to); got != want {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusCancelled || s == StatusRefunded || s == StatusDisputed
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
		if want && len(AllowedTransitions(s)) != 0 {
			t.Errorf("terminal %s has outgoing edges", s)
		}
	}
}

func TestAbandonedIsOutsideGraph(t *testing.T) {
	if !IsValidTransition(StatusAbandoned, StatusAbandoned) {
		t.Fatal("identity must be valid for ABANDONED")
	}
	for _, to := range Statuses {
		if IsValidTransition(StatusAbandoned, to) {
			t.Errorf("ABANDONED -> %s should be invalid", to)
		}
		if IsValidTransition(to, StatusAbandoned) {
			t.Errorf("%s -> ABANDONED should be invalid", to)
		}
	}
	if StatusAbandoned.IsPaidEquivalent() {
		t.Error("ABANDONED must not be paid-equivalent")
	}
}

func TestIsPaidEquivalent(t *testing.T) {
	want := map[Status]bool{StatusPaid: true, StatusFulfilling: true, StatusShipped: true, StatusCompleted: true}
	for _, s := range Statuses {
		if got := s.IsPaidEquivalent(); got != want[s] {
			t.Errorf("%s.IsPaidEquivalent() = %v, want %v", s, got, want[s])
		}
	}
}

func TestGetTransitionError(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantNil bool
		wantMsg string
	}{
		{name: "valid edge", from: StatusPending, to: StatusPaid, wantNil: true},
		{name: "identity", from: StatusShipped, to: StatusShipped, wantNil: true},
		{name: "disallowed edge", from: StatusPending, to: StatusShipped, wantMsg: "cannot move order from PENDING to SHIPPED; allowed: PAID, CANCELLED"},
		{name: "terminal source", from: StatusCancelled, to: StatusPaid, wantMsg: "order is in terminal status CANCELLED and cannot move to PAID"},
		{name: "backwards", from: StatusPaid, to: StatusPending, wantMsg: "cannot move order from PAID to PENDING; allowed: FULFILLING, CANCELLED, REFUNDED, DISPUTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GetTransitionError(tt.from, tt.to)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.wantMsg {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantMsg)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatal("transition error must wrap ErrValidation")
			}
			var te *TransitionError
			if !errors.As(err, &te) || te.From != tt.from {
				t.Fatalf("expected *TransitionError naming %s", tt.from)
			}
		})
	}
}

func TestGetConfirmPaymentError(t *testing.T) {
	if err := GetConfirmPaymentError(StatusPending); err != nil {
		t.Fatalf("PENDING must be confirmable, got %v", err)
	}

	tests := []struct {
		from    Status
		wantMsg string
	}{
		{StatusPaid, "order is already PAID; allowed: FULFILLING, CANCELLED, REFUNDED, DISPUTED"},
		{StatusShipped, "cannot move order from SHIPPED to PAID; allowed: COMPLETED, REFUNDED, DISPUTED"},
		{StatusRefunded, "order is in terminal status REFUNDED and cannot move to PAID"},
		{StatusAbandoned, "order is in terminal status ABANDONED and cannot move to PAID"},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			err := GetConfirmPaymentError(tt.from)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.wantMsg {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantMsg)
			}
			var te *TransitionError
			if !errors.As(err, &te) || !errors.Is(err, domain.ErrValidation) {
				t.Fatal("expected a *TransitionError wrapping ErrValidation")
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"paid", " Shipped ", "ABANDONED"} {
		if _, err := ParseStatus(in); err != nil {
			t.Errorf("ParseStatus(%q) error: %v", in, err)
		}
	}
	_, err := ParseStatus("lost")
	if err == nil || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "lost") {
		t.Fatalf("error should name the input: %v", err)
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	got := AllowedTransitions(StatusPending)
	got[0] = StatusDisputed
	if AllowedTransitions(StatusPending)[0] != StatusPaid {
		t.Fatal("AllowedTransitions leaked the internal slice")
	}
}
