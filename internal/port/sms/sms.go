// Package sms defines the port for delivering text messages to customers.
package sms

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by senders missing their endpoint or key.
var ErrNotConfigured = errors.New("sms sender not configured")

// Sender delivers one message. Calls are one-shot; implementations do not retry.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}
