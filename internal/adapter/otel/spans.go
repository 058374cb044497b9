package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "linkshop"

// StartOrderSpan starts a span for an order operation such as checkout or
// a status transition.
func StartOrderSpan(ctx context.Context, op, tenantID, orderID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "order."+op,
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("order.id", orderID),
		),
	)
}

// StartSweepSpan starts a span for one abandoned-draft sweep.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "recovery.sweep")
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
