// Package middleware provides the HTTP middleware chain for the linkshop API:
// request IDs, tenant resolution, authentication, plan gates, rate limits,
// idempotent replay and webhook signatures.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes shared with the HTTP adapter's envelope.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	OK    bool        `json:"ok"`
	Error errorDetail `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: errorDetail{Code: code, Message: message}}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
