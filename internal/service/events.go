package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/port/broadcast"
	"github.com/Strob0t/linkshop/internal/port/messagequeue"
)

var subjectEvents = map[string]string{
	messagequeue.SubjectOrderCreated:       broadcast.EventOrderCreated,
	messagequeue.SubjectOrderStatusChanged: broadcast.EventOrderStatusChanged,
}

// localBuffer bounds the events waiting for the local hub.
const localBuffer = 256

type localEvent struct {
	ctx       context.Context
	tenantID  string
	eventType string
	payload   any
}

// EventPublisher delivers order events to the admin live feed. With a
// queue, events travel through NATS so the hub of every instance sees them;
// without one they go to the local hub through a bounded buffer drained by
// a single worker, so a slow WebSocket never holds up the request.
type EventPublisher struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster

	mu      sync.RWMutex
	closed  bool
	local   chan localEvent
	done    chan struct{}
	dropped atomic.Int64
}

// NewEventPublisher creates an EventPublisher and starts its local delivery
// worker. queue may be nil. Close stops the worker.
func NewEventPublisher(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventPublisher {
	p := &EventPublisher{
		queue: queue,
		hub:   hub,
		local: make(chan localEvent, localBuffer),
		done:  make(chan struct{}),
	}
	go p.deliver()
	return p
}

func (p *EventPublisher) deliver() {
	defer close(p.done)
	for ev := range p.local {
		if p.hub != nil {
			p.hub.BroadcastEvent(ev.ctx, ev.tenantID, ev.eventType, ev.payload)
		}
	}
}

// Close delivers the buffered events and stops the worker. Events published
// afterwards are dropped. It is safe to call more than once.
func (p *EventPublisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.local)
	p.mu.Unlock()
	<-p.done
	if n := p.dropped.Load(); n > 0 {
		slog.Warn("local events dropped", "count", n)
	}
}

// Dropped returns how many events did not fit the local buffer.
func (p *EventPublisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *EventPublisher) enqueue(ctx context.Context, tenantID, eventType string, payload any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	ev := localEvent{ctx: context.WithoutCancel(ctx), tenantID: tenantID, eventType: eventType, payload: payload}
	select {
	case p.local <- ev:
	default:
		p.dropped.Add(1)
		slog.WarnContext(ctx, "local event buffer full, dropping event", "event", eventType)
	}
}

// OrderCreated announces a new order.
func (p *EventPublisher) OrderCreated(ctx context.Context, o *order.Order) {
	ev := order.CreatedEvent{
		TenantID:    o.TenantID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Amounts.Total,
		At:          o.CreatedAt,
	}
	p.publish(ctx, messagequeue.SubjectOrderCreated, o.TenantID, ev)
}

// StatusChanged announces a persisted status change.
func (p *EventPublisher) StatusChanged(ctx context.Context, ev order.StatusChangedEvent) {
	p.publish(ctx, messagequeue.SubjectOrderStatusChanged, ev.TenantID, ev)
}

// publish never fails the caller: the order is already stored, so a lost
// event only delays the admin feed until the next refresh.
func (p *EventPublisher) publish(ctx context.Context, subject, tenantID string, payload any) {
	if p == nil {
		return
	}
	if p.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			err = p.queue.Publish(ctx, subject, data)
		}
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "event publish failed, broadcasting locally", "subject", subject, "error", err)
	}
	if p.hub != nil {
		p.enqueue(ctx, tenantID, subjectEvents[subject], payload)
	}
}

// StartFanout subscribes to every order event and forwards it to the local
// hub. It is a no-op without a queue. The returned func stops the subscription.
func (p *EventPublisher) StartFanout(ctx context.Context) (func(), error) {
	if p.queue == nil || p.hub == nil {
		return func() {}, nil
	}
	stop, err := p.queue.Subscribe(ctx, messagequeue.SubjectOrders, p.forward)
	if err != nil {
		return nil, fmt.Errorf("subscribe order events: %w", err)
	}
	return stop, nil
}

func (p *EventPublisher) forward(ctx context.Context, subject string, data []byte) error {
	eventType, ok := subjectEvents[subject]
	if !ok {
		return nil
	}
	var head struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	p.hub.BroadcastEvent(ctx, head.TenantID, eventType, json.RawMessage(data))
	return nil
}
