package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/port/broadcast"
	"github.com/Strob0t/linkshop/internal/port/messagequeue"
)

// loopbackQueue delivers published messages to its subscribers synchronously.
type loopbackQueue struct {
	mu         sync.Mutex
	published  []string
	handlers   []messagequeue.Handler
	publishErr error
}

var _ messagequeue.Queue = (*loopbackQueue)(nil)

func (q *loopbackQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	if q.publishErr != nil {
		q.mu.Unlock()
		return q.publishErr
	}
	q.published = append(q.published, subject)
	handlers := append([]messagequeue.Handler(nil), q.handlers...)
	q.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, subject, data); err != nil {
			return err
		}
	}
	return nil
}

func (q *loopbackQueue) Subscribe(_ context.Context, _ string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, h)
	return func() {}, nil
}

func (q *loopbackQueue) Drain() error      { return nil }
func (q *loopbackQueue) Close() error      { return nil }
func (q *loopbackQueue) IsConnected() bool { return true }

func testOrder() *order.Order {
	return &order.Order{
		ID:          "o1",
		TenantID:    "t1",
		OrderNumber: "LS1",
		Status:      order.StatusPending,
		Amounts:     order.Amounts{Total: decimal.RequireFromString("258.5")},
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEventPublisher_LocalWithoutQueue(t *testing.T) {
	hub := &recordingHub{}
	p := NewEventPublisher(nil, hub)

	p.OrderCreated(context.Background(), testOrder())
	p.Close()
	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, "t1", events[0].tenantID)
	assert.Equal(t, broadcast.EventOrderCreated, events[0].eventType)

	stop, err := p.StartFanout(context.Background())
	require.NoError(t, err)
	stop()
}

func TestEventPublisher_FanoutThroughQueue(t *testing.T) {
	hub := &recordingHub{}
	q := &loopbackQueue{}
	p := NewEventPublisher(q, hub)

	stop, err := p.StartFanout(context.Background())
	require.NoError(t, err)
	defer stop()

	p.StatusChanged(context.Background(), order.StatusChangedEvent{
		TenantID: "t1", OrderID: "o1", From: order.StatusPending, To: order.StatusPaid, By: "admin:a1",
	})

	assert.Equal(t, []string{messagequeue.SubjectOrderStatusChanged}, q.published)
	events := hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, "t1", events[0].tenantID)
	assert.Equal(t, broadcast.EventOrderStatusChanged, events[0].eventType)

	raw, ok := events[0].payload.(json.RawMessage)
	require.True(t, ok)
	var ev order.StatusChangedEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, order.StatusPaid, ev.To)
}

func TestEventPublisher_PublishFailureFallsBackLocal(t *testing.T) {
	hub := &recordingHub{}
	q := &loopbackQueue{publishErr: errors.New("nats down")}
	p := NewEventPublisher(q, hub)

	p.OrderCreated(context.Background(), testOrder())
	p.Close()
	require.Len(t, hub.all(), 1)
}

// stalledHub blocks every broadcast until release is closed, like a hub
// stuck writing to a slow WebSocket.
type stalledHub struct {
	recordingHub
	release chan struct{}
}

func (h *stalledHub) BroadcastEvent(ctx context.Context, tenantID, eventType string, payload any) {
	<-h.release
	h.recordingHub.BroadcastEvent(ctx, tenantID, eventType, payload)
}

func TestEventPublisher_SlowHubDoesNotBlockPublish(t *testing.T) {
	hub := &stalledHub{release: make(chan struct{})}
	p := NewEventPublisher(nil, hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 3 {
			p.OrderCreated(ctx, testOrder())
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on the hub")
	}
	// The request is over before the hub gets to the event.
	cancel()

	close(hub.release)
	p.Close()
	assert.Len(t, hub.all(), 3)
	assert.Zero(t, p.Dropped())
}

func TestEventPublisher_DropsWhenBufferFull(t *testing.T) {
	hub := &stalledHub{release: make(chan struct{})}
	p := NewEventPublisher(nil, hub)

	total := localBuffer + 10
	for range total {
		p.OrderCreated(context.Background(), testOrder())
	}
	close(hub.release)
	p.Close()

	delivered := int64(len(hub.all()))
	assert.Equal(t, int64(total), delivered+p.Dropped())
	assert.GreaterOrEqual(t, p.Dropped(), int64(9))
}

func TestEventPublisher_PublishAfterClose(t *testing.T) {
	hub := &recordingHub{}
	p := NewEventPublisher(nil, hub)
	p.Close()
	p.Close()

	assert.NotPanics(t, func() { p.OrderCreated(context.Background(), testOrder()) })
	assert.Empty(t, hub.all())
}

func TestEventPublisher_NilIsNoop(t *testing.T) {
	var p *EventPublisher
	assert.NotPanics(t, func() {
		p.OrderCreated(context.Background(), testOrder())
		p.Close()
	})
}

func TestEventPublisher_ForwardIgnoresUnknownSubjects(t *testing.T) {
	hub := &recordingHub{}
	p := NewEventPublisher(&loopbackQueue{}, hub)
	require.NoError(t, p.forward(context.Background(), "orders.unknown", []byte(`{}`)))
	assert.Error(t, p.forward(context.Background(), messagequeue.SubjectOrderCreated, []byte(`{`)))
	assert.Empty(t, hub.all())
}
