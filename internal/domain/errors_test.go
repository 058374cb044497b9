package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorHelpersWrapSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		msg  string
	}{
		{"validation", Validationf("bad %s", "phone"), ErrValidation, "validation: bad phone"},
		{"forbidden", Forbiddenf("needs %s", "pro"), ErrForbidden, "forbidden: needs pro"},
		{"unauthorized", Unauthorizedf("invalid token"), ErrUnauthorized, "unauthorized: invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
			if tt.err.Error() != tt.msg {
				t.Fatalf("message = %q, want %q", tt.err.Error(), tt.msg)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	wrapped := fmt.Errorf("confirm payment: %w", Validationf("order is already PAID"))
	if got := PublicMessage(wrapped, ErrValidation); got != "order is already PAID" {
		t.Fatalf("PublicMessage = %q", got)
	}
	if got := PublicMessage(ErrNotFound, ErrNotFound); got != "not found" {
		t.Fatalf("bare sentinel = %q", got)
	}
}
