// Package database defines the database store port (interface).
//
// Every tenant-owned method takes the tenant ID as an explicit argument and
// must filter by it. A row owned by another tenant is reported as
// domain.ErrNotFound.
package database

import (
	"context"
	"time"

	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/coupon"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/domain/draft"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/product"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
)

// Store is the port interface for database operations.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenantPlan(ctx context.Context, id string, sub plan.Subscription) error

	// Orders
	// CreateOrder inserts o and, in the same transaction, decrements stock
	// for every item and redeems o.CouponCode when set. Insufficient stock
	// or an exhausted coupon aborts with domain.ErrValidation.
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, tenantID, id string) (*order.Order, error)
	GetOrderByNumber(ctx context.Context, tenantID, number string) (*order.Order, error)
	// UpdateOrderStatus writes status, payment fields, stage timestamps and
	// history of o only while the stored status still equals expected.
	// It returns domain.ErrConflict when no row matched.
	UpdateOrderStatus(ctx context.Context, tenantID string, o *order.Order, expected order.Status) error
	ListOrders(ctx context.Context, tenantID string, f order.ListFilter) ([]order.Order, error)
	CountOrders(ctx context.Context, tenantID string, f order.ListFilter) (int, error)
	ListOrdersByPhone(ctx context.Context, tenantID, phone string, limit int) ([]order.Order, error)
	ListOrdersByUser(ctx context.Context, tenantID, userID string, limit int) ([]order.Order, error)
	ListCustomerRecords(ctx context.Context, tenantID string, limit, offset int) ([]customer.Record, error)

	// Products
	ListProducts(ctx context.Context, tenantID string, activeOnly bool) ([]product.Product, error)
	GetProduct(ctx context.Context, tenantID, id string) (*product.Product, error)
	GetProductsByIDs(ctx context.Context, tenantID string, ids []string) ([]product.Product, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	// UpdateProduct writes the editable fields of p and adds stockDelta to
	// the stored stock, floored at zero, so concurrent checkout decrements
	// are kept. p.Stock is set to the resulting stock.
	UpdateProduct(ctx context.Context, p *product.Product, stockDelta int) error
	DeactivateProduct(ctx context.Context, tenantID, id string) error
	CountProducts(ctx context.Context, tenantID string) (int, error)

	// Customers, sessions and OTP codes
	UpsertCustomerUser(ctx context.Context, tenantID, phone, name string) (*customer.User, error)
	GetCustomerUser(ctx context.Context, tenantID, id string) (*customer.User, error)
	CreateSession(ctx context.Context, s *customer.Session) error
	GetSession(ctx context.Context, tokenHash string) (*customer.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
	SaveOTP(ctx context.Context, o *customer.OTP) error
	GetOTP(ctx context.Context, tenantID, phone string) (*customer.OTP, error)
	IncrementOTPAttempts(ctx context.Context, tenantID, phone string) (int, error)
	DeleteOTP(ctx context.Context, tenantID, phone string) error

	// Admins
	CreateAdmin(ctx context.Context, a *admin.Admin) error
	GetAdmin(ctx context.Context, tenantID, id string) (*admin.Admin, error)
	GetAdminByEmail(ctx context.Context, tenantID, email string) (*admin.Admin, error)

	// Coupons
	ListCoupons(ctx context.Context, tenantID string) ([]coupon.Coupon, error)
	GetCouponByCode(ctx context.Context, tenantID, code string) (*coupon.Coupon, error)
	CreateCoupon(ctx context.Context, c *coupon.Coupon) error

	// Checkout drafts
	UpsertDraft(ctx context.Context, d *draft.Draft) error
	ListDrafts(ctx context.Context, tenantID string) ([]draft.Draft, error)
	// ListStaleDrafts spans all tenants; it serves the background sweeper.
	ListStaleDrafts(ctx context.Context, before time.Time, limit int) ([]draft.Draft, error)
	// AbandonDraft inserts o (status ABANDONED) and deletes d in one transaction.
	AbandonDraft(ctx context.Context, d *draft.Draft, o *order.Order) error
	DeleteDraft(ctx context.Context, tenantID, sessionID string) error
}
