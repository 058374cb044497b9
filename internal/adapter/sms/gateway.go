// Package sms implements the sms.Sender port: an HTTP gateway client guarded
// by a circuit breaker, and a log sender for development.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/linkshop/internal/port/sms"
	"github.com/Strob0t/linkshop/internal/resilience"
)

// Gateway posts messages to an SMS provider's JSON endpoint.
type Gateway struct {
	url        string
	sender     string
	apiKey     func() string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewGateway creates a gateway client. apiKey is read on every call so a
// secret reload takes effect without a restart.
func NewGateway(url, sender string, apiKey func() string, timeout time.Duration, breaker *resilience.Breaker) *Gateway {
	return &Gateway{
		url:        url,
		sender:     sender,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

type gatewayMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// Send delivers one message. Gateway failures count against the breaker;
// an open breaker fails fast with resilience.ErrCircuitOpen.
func (g *Gateway) Send(ctx context.Context, phone, message string) error {
	key := g.apiKey()
	if g.url == "" || key == "" {
		return sms.ErrNotConfigured
	}
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.post(ctx, key, gatewayMessage{From: g.sender, To: "+852" + phone, Text: message})
	})
}

func (g *Gateway) post(ctx context.Context, key string, msg gatewayMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sms marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.httpClient.Do(req) //nolint:gosec // gateway URL from trusted config
	if err != nil {
		return fmt.Errorf("sms send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms gateway %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
