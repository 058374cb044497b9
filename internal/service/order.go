package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/coupon"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/product"
	"github.com/Strob0t/linkshop/internal/port/database"
)

const (
	orderNumberPrefix = "LS"

	defaultListLimit = 50
	maxListLimit     = 200
	searchLimit      = 20

	// statusAttempts bounds how often a status change re-reads the order
	// after losing a race to another writer.
	statusAttempts = 3
)

// Actors recorded in order history for non-admin changes.
const (
	ActorGuest          = "guest"
	ActorPaymentGateway = "payment-gateway"
	ActorSystem         = "system"
)

// OrderService implements checkout and the order lifecycle.
type OrderService struct {
	store   database.Store
	plans   *PlanService
	events  *EventPublisher
	metrics *lsotel.Metrics
	node    *snowflake.Node
	now     func() time.Time
}

// NewOrderService creates an OrderService. events and metrics may be nil.
func NewOrderService(store database.Store, plans *PlanService, events *EventPublisher, metrics *lsotel.Metrics, node *snowflake.Node) *OrderService {
	return &OrderService{
		store:   store,
		plans:   plans,
		events:  events,
		metrics: metrics,
		node:    node,
		now:     time.Now,
	}
}

// NewOrderNumber returns a short, time-ordered, human-readable order number.
func NewOrderNumber(node *snowflake.Node) string {
	return orderNumberPrefix + strings.ToUpper(node.Generate().Base36())
}

// Checkout prices the request from the catalogue, applies an optional
// coupon and stores a PENDING order. userID is empty for guest checkouts.
func (s *OrderService) Checkout(ctx context.Context, tenantID, userID string, req order.CheckoutRequest) (o *order.Order, err error) {
	ctx, span := lsotel.StartOrderSpan(ctx, "checkout", tenantID, "")
	defer func() { lsotel.EndSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.plans.EnforceLimit(ctx, tenantID, plan.ResourceOrders); err != nil {
		return nil, err
	}

	items, subtotal, err := s.priceItems(ctx, tenantID, &req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	discount := decimal.Zero
	code := coupon.NormalizeCode(req.CouponCode)
	if code != "" {
		discount, err = s.applyCoupon(ctx, tenantID, code, subtotal, now)
		if err != nil {
			return nil, err
		}
	}

	by := ActorGuest
	if userID != "" {
		by = "customer:" + userID
	}
	o = &order.Order{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		OrderNumber:   NewOrderNumber(s.node),
		UserID:        userID,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Amounts: order.Amounts{
			Subtotal: subtotal,
			Discount: discount,
			Shipping: decimal.Zero,
			Total:    subtotal.Sub(discount),
		},
		Items:      items,
		Customer:   req.Customer,
		CouponCode: code,
		Note:       strings.TrimSpace(req.Note),
		StatusHistory: []order.HistoryEntry{{
			Timestamp: now,
			ToStatus:  order.StatusPending,
			Action:    order.ActionCheckout,
			By:        by,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	total, _ := o.Amounts.Total.Float64()
	s.metrics.OrderCreated(ctx, tenantID, total)
	s.events.OrderCreated(ctx, o)
	slog.InfoContext(ctx, "order created", "order_id", o.ID, "order_number", o.OrderNumber, "total", o.Amounts.Total.String())
	return o, nil
}

// priceItems loads the requested products in one query and prices each line
// from the stored price. Inactive, foreign and out-of-stock products are
// rejected. req must already be validated so its lines are merged.
func (s *OrderService) priceItems(ctx context.Context, tenantID string, req *order.CheckoutRequest) ([]order.Item, decimal.Decimal, error) {
	lines := req.Items
	products, err := s.store.GetProductsByIDs(ctx, tenantID, req.ProductIDs())
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]order.Item, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || !p.Active {
			return nil, decimal.Zero, domain.Validationf("product %s is not available", l.ProductID)
		}
		if p.Stock < l.Quantity {
			return nil, decimal.Zero, domain.Validationf("insufficient stock for %s (%d left)", p.Name, p.Stock)
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		items = append(items, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			LineTotal: line,
		})
		subtotal = subtotal.Add(line)
	}
	return items, subtotal, nil
}

func (s *OrderService) applyCoupon(ctx context.Context, tenantID, code string, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	ok, err := s.plans.HasFeature(ctx, tenantID, plan.FeatureCoupon)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, domain.Validationf("this shop does not accept coupon codes")
	}
	c, err := s.store.GetCouponByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.Validationf("unknown coupon %s", code)
		}
		return decimal.Zero, fmt.Errorf("load coupon: %w", err)
	}
	return c.Discount(subtotal, now)
}

// Get returns an order of the tenant. Orders of other tenants are not found.
func (s *OrderService) Get(ctx context.Context, tenantID, id string) (*order.Order, error) {
	o, err := s.store.GetOrder(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	return o, nil
}

// Track returns the public lifecycle view of an order, looked up by ID or
// by order number.
func (s *OrderService) Track(ctx context.Context, tenantID, ref string) (*order.Tracking, error) {
	var (
		o   *order.Order
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		o, err = s.store.GetOrder(ctx, tenantID, ref)
	} else {
		o, err = s.store.GetOrderByNumber(ctx, tenantID, strings.ToUpper(strings.TrimSpace(ref)))
	}
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", ref, err)
	}
	if o.Status == order.StatusAbandoned {
		return nil, fmt.Errorf("order %s: %w", ref, domain.ErrNotFound)
	}
	t := o.Tracking()
	return &t, nil
}

// SearchByPhone returns the latest orders placed with phone.
func (s *OrderService) SearchByPhone(ctx context.Context, tenantID, rawPhone string) ([]order.Summary, error) {
	phone, err := customer.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByPhone(ctx, tenantID, phone, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	out := make([]order.Summary, 0, len(orders))
	for i := range orders {
		if orders[i].Status == order.StatusAbandoned {
			continue
		}
		out = append(out, orders[i].Summary())
	}
	return out, nil
}

// ListMine returns the orders of a logged-in customer, newest first.
func (s *OrderService) ListMine(ctx context.Context, tenantID, userID string) ([]order.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, tenantID, userID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list customer orders: %w", err)
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return orders, nil
}

// List returns the tenant's orders matching f, newest first.
func (s *OrderService) List(ctx context.Context, tenantID string, f order.ListFilter) ([]order.Order, error) {
	f.Limit = clampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	orders, err := s.store.ListOrders(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return orders, nil
}

// Count returns how many of the tenant's orders match f.
func (s *OrderService) Count(ctx context.Context, tenantID string, f order.ListFilter) (int, error) {
	n, err := s.store.CountOrders(ctx, tenantID, f)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// ConfirmPayment moves a PENDING order to PAID. Any other current status,
// including PAID itself, is rejected with a validation error naming it.
func (s *OrderService) ConfirmPayment(ctx context.Context, tenantID, orderID, by string) (*order.Order, error) {
	return s.changeStatus(ctx, tenantID, orderID, order.Transition{
		To:     order.StatusPaid,
		Action: order.ActionConfirmPayment,
		By:     by,
	}, true)
}

// Transition moves an order to status to along the state machine. Moving to
// the current status is a no-op.
func (s *OrderService) Transition(ctx context.Context, tenantID, orderID string, to order.Status, by string) (*order.Order, error) {
	return s.changeStatus(ctx, tenantID, orderID, order.Transition{To: to, By: by}, false)
}

// changeStatus applies t with a conditional write on the status it read.
// When another writer got there first the order is re-read and the change
// re-validated against the new status.
func (s *OrderService) changeStatus(ctx context.Context, tenantID, orderID string, t order.Transition, pendingOnly bool) (result *order.Order, err error) {
	ctx, span := lsotel.StartOrderSpan(ctx, "transition", tenantID, orderID)
	defer func() { lsotel.EndSpan(span, err) }()

	for attempt := 1; ; attempt++ {
		cur, err := s.store.GetOrder(ctx, tenantID, orderID)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", orderID, err)
		}
		if pendingOnly {
			if err := order.GetConfirmPaymentError(cur.Status); err != nil {
				return nil, err
			}
		}

		next := cur.Clone()
		t.At = s.now().UTC()
		changed, err := next.ApplyTransition(t)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cur, nil
		}

		err = s.store.UpdateOrderStatus(ctx, tenantID, next, cur.Status)
		if errors.Is(err, domain.ErrConflict) && attempt < statusAttempts {
			slog.DebugContext(ctx, "order changed concurrently, re-checking", "order_id", orderID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update order %s: %w", orderID, err)
		}

		s.metrics.OrderTransitioned(ctx, string(cur.Status), string(next.Status))
		s.events.StatusChanged(ctx, order.StatusChangedEvent{
			TenantID:    tenantID,
			OrderID:     next.ID,
			OrderNumber: next.OrderNumber,
			From:        cur.Status,
			To:          next.Status,
			By:          t.By,
			At:          t.At,
		})
		slog.InfoContext(ctx, "order status changed", "order_id", orderID, "from", cur.Status, "to", next.Status, "by", t.By)
		return next, nil
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	}
	return n
}
