package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/product"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/database/dbtest"
	"github.com/Strob0t/linkshop/internal/secrets"
)

// memCache is a map-backed cache.Cache that ignores TTLs.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

type fakeSecrets map[string]string

func (f fakeSecrets) Get(key string) string { return f[key] }

func testSecrets() fakeSecrets {
	return fakeSecrets{
		secrets.JWTSecret:        "test-jwt-secret-0123456789abcdef",
		secrets.SuperAdminSecret: "super-secret",
	}
}

type hubEvent struct {
	tenantID  string
	eventType string
	payload   any
}

// recordingHub is a broadcast.Broadcaster that keeps every event.
type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *recordingHub) BroadcastEvent(_ context.Context, tenantID, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{tenantID, eventType, payload})
}

func (h *recordingHub) all() []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hubEvent(nil), h.events...)
}

func testAuthConfig() config.Auth {
	return config.Auth{
		TokenIssuer:    "linkshop",
		AccessTokenTTL: time.Hour,
		SessionTTL:     24 * time.Hour,
		OTPTTL:         5 * time.Minute,
		OTPMaxAttempts: 5,
		BcryptCost:     bcrypt.MinCost,
	}
}

// testEnv wires the services against one in-memory store.
type testEnv struct {
	store   *dbtest.Store
	tenants *TenantService
	plans   *PlanService
	orders  *OrderService
	hub     *recordingHub
	events  *EventPublisher
	node    *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := dbtest.New()
	hub := &recordingHub{}
	tenants := NewTenantService(store, nil, time.Minute)
	plans := NewPlanService(tenants, store, plan.TierPro)
	events := NewEventPublisher(nil, hub)
	t.Cleanup(events.Close)
	return &testEnv{
		store:   store,
		tenants: tenants,
		plans:   plans,
		orders:  NewOrderService(store, plans, events, nil, node),
		hub:     hub,
		events:  events,
		node:    node,
	}
}

// publishedEvents closes the publisher so every queued event reaches the
// hub, then returns them. Later events are dropped.
func (e *testEnv) publishedEvents() []hubEvent {
	e.events.Close()
	return e.hub.all()
}

func (e *testEnv) addTenant(slug string, tier plan.Tier) tenant.Tenant {
	return e.store.AddTenant(tenant.Tenant{
		Slug:     slug,
		Name:     slug + " shop",
		Plan:     tier,
		Currency: tenant.DefaultCurrency,
		Timezone: tenant.DefaultTimezone,
	})
}

func (e *testEnv) addProduct(tenantID, name, price string, stock int) product.Product {
	return e.store.AddProduct(product.Product{
		TenantID: tenantID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Active:   true,
	})
}

func (e *testEnv) addOrder(tenantID string, st order.Status, total string, at time.Time) *order.Order {
	return e.store.AddOrder(order.Order{
		TenantID:      tenantID,
		OrderNumber:   NewOrderNumber(e.node),
		Status:        st,
		PaymentStatus: order.PaymentPending,
		Amounts:       order.Amounts{Subtotal: decimal.RequireFromString(total), Total: decimal.RequireFromString(total)},
		Customer:      order.Contact{Name: "Chan", Phone: "91234567"},
		StatusHistory: []order.HistoryEntry{{Timestamp: at, ToStatus: st, Action: order.ActionCheckout, By: ActorGuest}},
		CreatedAt:     at,
		UpdatedAt:     at,
	})
}

func checkoutReq(items ...order.CheckoutItem) order.CheckoutRequest {
	return order.CheckoutRequest{
		Items:    items,
		Customer: order.Contact{Name: "Chan Tai Man", Phone: "+852 9123 4567"},
	}
}
