// Package domain provides shared domain-level sentinel errors.
//
// Every error returned by a service wraps one of these sentinels so the HTTP
// adapter can map it to a response kind with errors.Is.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the requested entity does not exist for the caller's tenant.
// Cross-tenant lookups must return this error, never ErrForbidden.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed input or a disallowed state change.
var ErrValidation = errors.New("validation")

// ErrUnauthorized indicates missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates a valid identity lacking the required plan or role.
var ErrForbidden = errors.New("forbidden")

// ErrRateLimited indicates the caller exceeded a rate limit.
var ErrRateLimited = errors.New("rate limited")

// Validationf returns an error wrapping ErrValidation with a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Forbiddenf returns an error wrapping ErrForbidden with a caller-facing message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Unauthorizedf returns an error wrapping ErrUnauthorized with a caller-facing message.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// PublicMessage returns the caller-facing part of err: the text following
// sentinel's own message. Outer wrapping context is dropped. When err does
// not carry a message after sentinel, the sentinel text is returned.
func PublicMessage(err, sentinel error) string {
	s := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(s, prefix); i >= 0 {
		return s[i+len(prefix):]
	}
	return sentinel.Error()
}
