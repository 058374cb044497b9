package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/domain/order"
)

const orderColumns = `id, tenant_id, order_number, COALESCE(user_id::text, ''), status, payment_status,
	payment_confirmed_by, amounts, items, customer, coupon_code, note, status_history,
	paid_at, fulfilling_at, shipped_at, completed_at, cancelled_at, refunded_at, disputed_at,
	created_at, updated_at`

func scanOrder(row scannable) (order.Order, error) {
	var o order.Order
	var amountsJSON, itemsJSON, customerJSON, historyJSON []byte
	ts := &o.Timestamps
	err := row.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.PaymentConfirmedBy, &amountsJSON, &itemsJSON, &customerJSON, &o.CouponCode, &o.Note, &historyJSON,
		&ts.PaidAt, &ts.FulfillingAt, &ts.ShippedAt, &ts.CompletedAt, &ts.CancelledAt, &ts.RefundedAt, &ts.DisputedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	for _, doc := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"amounts", amountsJSON, &o.Amounts},
		{"items", itemsJSON, &o.Items},
		{"customer", customerJSON, &o.Customer},
		{"status_history", historyJSON, &o.StatusHistory},
	} {
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return o, fmt.Errorf("decode %s of order %s: %w", doc.name, o.ID, err)
		}
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]order.Order, error) {
	defer rows.Close()
	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// paidEquivalentStatuses returns the statuses counted as revenue.
func paidEquivalentStatuses() []string {
	var out []string
	for _, st := range order.Statuses {
		if st.IsPaidEquivalent() {
			out = append(out, string(st))
		}
	}
	return out
}

// --- Orders ---

// CreateOrder inserts o after reserving stock and redeeming its coupon in
// the same transaction.
func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	amounts, err := json.Marshal(o.Amounts)
	if err != nil {
		return fmt.Errorf("marshal amounts: %w", err)
	}
	items, err := marshalJSONB(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	contact, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	history, err := marshalJSONB(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, it := range o.Items {
			tag, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock - $3, updated_at = now()
				 WHERE id = $1 AND tenant_id = $2 AND active AND stock >= $3`,
				it.ProductID, o.TenantID, it.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock for %s: %w", it.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				return domain.Validationf("insufficient stock for %s", it.Name)
			}
		}

		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx,
				`UPDATE coupons SET used = used + 1
				 WHERE tenant_id = $1 AND code = $2 AND active AND (max_uses = 0 OR used < max_uses)`,
				o.TenantID, o.CouponCode)
			if err != nil {
				return fmt.Errorf("redeem coupon %s: %w", o.CouponCode, err)
			}
			if tag.RowsAffected() == 0 {
				return domain.Validationf("coupon %s is no longer available", o.CouponCode)
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO orders (id, tenant_id, order_number, user_id, status, payment_status, payment_confirmed_by,
			   amounts, items, customer, coupon_code, note, status_history, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			o.ID, o.TenantID, o.OrderNumber, nullIfEmpty(o.UserID), string(o.Status), string(o.PaymentStatus),
			o.PaymentConfirmedBy, amounts, items, contact, o.CouponCode, o.Note, history,
			defaultNow(o.CreatedAt), defaultNow(o.UpdatedAt))
		if err != nil {
			return uniqueWrap(err, "insert order %s", o.OrderNumber)
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, tenantID, id string) (*order.Order, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get order %s: %w", id, domain.ErrNotFound)
	}
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, notFoundWrap(err, "get order %s", id)
	}
	return &o, nil
}

func (s *Store) GetOrderByNumber(ctx context.Context, tenantID, number string) (*order.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 AND tenant_id = $2`, number, tenantID))
	if err != nil {
		return nil, notFoundWrap(err, "get order %s", number)
	}
	return &o, nil
}

// UpdateOrderStatus writes the lifecycle fields of o in one conditional
// statement. A row whose status moved since it was read is not touched.
func (s *Store) UpdateOrderStatus(ctx context.Context, tenantID string, o *order.Order, expected order.Status) error {
	history, err := marshalJSONB(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	ts := o.Timestamps
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $4, payment_status = $5, payment_confirmed_by = $6, status_history = $7,
		   paid_at = $8, fulfilling_at = $9, shipped_at = $10, completed_at = $11,
		   cancelled_at = $12, refunded_at = $13, disputed_at = $14, updated_at = $15
		 WHERE id = $1 AND tenant_id = $2 AND status = $3`,
		o.ID, tenantID, string(expected), string(o.Status), string(o.PaymentStatus), o.PaymentConfirmedBy, history,
		ts.PaidAt, ts.FulfillingAt, ts.ShippedAt, ts.CompletedAt, ts.CancelledAt, ts.RefundedAt, ts.DisputedAt,
		defaultNow(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update order status %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order status %s: %w", o.ID, domain.ErrConflict)
	}
	return nil
}

// orderFilter renders the WHERE clause of f, starting after the tenant
// placeholder $1.
func orderFilter(tenantID string, f order.ListFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(" WHERE tenant_id = $1")
	args := []any{tenantID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		b.WriteString(" AND status = $" + strconv.Itoa(len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		b.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, f order.ListFilter) ([]order.Order, error) {
	where, args := orderFilter(tenantID, f)
	args = append(args, f.Limit, f.Offset)
	n := len(args)
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+
			` ORDER BY created_at DESC LIMIT NULLIF($`+strconv.Itoa(n-1)+`::int, 0) OFFSET $`+strconv.Itoa(n),
		args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collectOrders(rows)
}

func (s *Store) CountOrders(ctx context.Context, tenantID string, f order.ListFilter) (int, error) {
	where, args := orderFilter(tenantID, f)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (s *Store) ListOrdersByPhone(ctx context.Context, tenantID, phone string, limit int) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND customer_phone = $2
		 ORDER BY created_at DESC LIMIT NULLIF($3::int, 0)`,
		tenantID, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by phone: %w", err)
	}
	return collectOrders(rows)
}

func (s *Store) ListOrdersByUser(ctx context.Context, tenantID, userID string, limit int) ([]order.Order, error) {
	if !isUUID(userID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND user_id = $2
		 ORDER BY created_at DESC LIMIT NULLIF($3::int, 0)`,
		tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	return collectOrders(rows)
}

// ListCustomerRecords aggregates non-abandoned orders per phone, newest
// buyer first. Name and user come from the latest order.
func (s *Store) ListCustomerRecords(ctx context.Context, tenantID string, limit, offset int) ([]customer.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT customer_phone,
		        COALESCE((array_agg(customer->>'name' ORDER BY created_at DESC))[1], ''),
		        COALESCE((array_agg(user_id::text ORDER BY created_at DESC))[1], ''),
		        count(*),
		        COALESCE(sum(total) FILTER (WHERE status = ANY($2)), 0),
		        max(created_at)
		 FROM orders
		 WHERE tenant_id = $1 AND status <> $3
		 GROUP BY customer_phone
		 ORDER BY max(created_at) DESC
		 LIMIT NULLIF($4::int, 0) OFFSET $5`,
		tenantID, paidEquivalentStatuses(), string(order.StatusAbandoned), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list customer records: %w", err)
	}
	defer rows.Close()

	var out []customer.Record
	for rows.Next() {
		var r customer.Record
		var paid decimal.Decimal
		if err := rows.Scan(&r.Phone, &r.Name, &r.UserID, &r.OrderCount, &paid, &r.LastOrder); err != nil {
			return nil, fmt.Errorf("scan customer record: %w", err)
		}
		r.PaidTotal = paid
		out = append(out, r)
	}
	return out, rows.Err()
}
