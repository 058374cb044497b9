package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "linkshop"

// Metrics holds the domain metric instruments.
type Metrics struct {
	OrdersCreated     metric.Int64Counter
	OrderTransitions  metric.Int64Counter
	OTPSent           metric.Int64Counter
	RateLimitRejected metric.Int64Counter
	DraftsAbandoned   metric.Int64Counter
	CheckoutTotal     metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.OrdersCreated, err = meter.Int64Counter("linkshop.orders.created",
		metric.WithDescription("Orders created by checkout"))
	if err != nil {
		return nil, err
	}

	m.OrderTransitions, err = meter.Int64Counter("linkshop.orders.transitions",
		metric.WithDescription("Persisted order status changes"))
	if err != nil {
		return nil, err
	}

	m.OTPSent, err = meter.Int64Counter("linkshop.otp.sent",
		metric.WithDescription("One-time passcodes issued"))
	if err != nil {
		return nil, err
	}

	m.RateLimitRejected, err = meter.Int64Counter("linkshop.ratelimit.rejected",
		metric.WithDescription("Requests rejected by the rate limiter"))
	if err != nil {
		return nil, err
	}

	m.DraftsAbandoned, err = meter.Int64Counter("linkshop.drafts.abandoned",
		metric.WithDescription("Checkout drafts recorded as abandoned orders"))
	if err != nil {
		return nil, err
	}

	m.CheckoutTotal, err = meter.Float64Histogram("linkshop.checkout.total",
		metric.WithDescription("Order totals at checkout"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// A nil *Metrics records nothing, so services can run without telemetry.

// OrderCreated records a checkout.
func (m *Metrics) OrderCreated(ctx context.Context, tenantID string, total float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tenant.id", tenantID))
	m.OrdersCreated.Add(ctx, 1, attrs)
	m.CheckoutTotal.Record(ctx, total, attrs)
}

// OrderTransitioned records a status change.
func (m *Metrics) OrderTransitioned(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.from", from),
		attribute.String("order.to", to),
	))
}

// RateLimited records a rejected request for the named rule.
func (m *Metrics) RateLimited(ctx context.Context, rule string) {
	if m == nil {
		return
	}
	m.RateLimitRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}

// OTPIssued records a passcode sent to a customer.
func (m *Metrics) OTPIssued(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.OTPSent.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant.id", tenantID)))
}

// DraftAbandoned records a draft turned into an abandoned order.
func (m *Metrics) DraftAbandoned(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.DraftsAbandoned.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant.id", tenantID)))
}
