// Package dbtest provides an in-memory database.Store for tests.
package dbtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/coupon"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/domain/draft"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/product"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store is a mutex-guarded in-memory implementation of database.Store.
// Values are copied on the way in and out.
type Store struct {
	mu       sync.Mutex
	tenants  map[string]tenant.Tenant
	orders   map[string]*order.Order
	products map[string]product.Product
	users    map[string]customer.User
	sessions map[string]customer.Session
	otps     map[string]customer.OTP
	admins   map[string]admin.Admin
	coupons  map[string]coupon.Coupon
	drafts   map[string]draft.Draft

	// BeforeOrderUpdate runs before UpdateOrderStatus takes the lock.
	// Tests use it to simulate a concurrent writer.
	BeforeOrderUpdate func()

	// BeforeProductUpdate does the same for UpdateProduct.
	BeforeProductUpdate func()
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tenants:  make(map[string]tenant.Tenant),
		orders:   make(map[string]*order.Order),
		products: make(map[string]product.Product),
		users:    make(map[string]customer.User),
		sessions: make(map[string]customer.Session),
		otps:     make(map[string]customer.OTP),
		admins:   make(map[string]admin.Admin),
		coupons:  make(map[string]coupon.Coupon),
		drafts:   make(map[string]draft.Draft),
	}
}

func key(parts ...string) string { return strings.Join(parts, "|") }

// --- Seeding helpers ---

// AddTenant stores t as is, assigning an ID when empty.
func (s *Store) AddTenant(t tenant.Tenant) tenant.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = tenant.StatusActive
	}
	s.tenants[t.ID] = t
	return t
}

// AddOrder stores a copy of o as is, bypassing stock and coupon checks.
func (s *Store) AddOrder(o order.Order) *order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o.Clone()
	return o.Clone()
}

// AddProduct stores p as is, assigning an ID when empty.
func (s *Store) AddProduct(p product.Product) product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = p
	return p
}

// AddCoupon stores c as is, assigning an ID when empty.
func (s *Store) AddCoupon(c coupon.Coupon) coupon.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.coupons[key(c.TenantID, c.Code)] = c
	return c
}

// SetOrderStatus overwrites the stored status of an order without validation.
func (s *Store) SetOrderStatus(id string, st order.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Status = st
	}
}

// Drafts returns the number of stored drafts.
func (s *Store) Drafts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// --- Tenants ---

func (s *Store) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == req.Slug {
			return nil, domain.ErrConflict
		}
	}
	now := time.Now()
	t := tenant.Tenant{
		ID: uuid.NewString(), Slug: req.Slug, Name: req.Name, Status: tenant.StatusActive,
		Plan: req.Plan, Currency: req.Currency, Timezone: req.Timezone, CreatedAt: now, UpdatedAt: now,
	}
	s.tenants[t.ID] = t
	return &t, nil
}

func (s *Store) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetTenantByDomain(_ context.Context, d string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.CustomDomain != "" && strings.EqualFold(t.CustomDomain, d) {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) UpdateTenantPlan(_ context.Context, id string, sub plan.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Plan, t.PlanExpiresAt, t.TrialEndsAt = sub.Plan, sub.PlanExpiresAt, sub.TrialEndsAt
	s.tenants[id] = t
	return nil
}

// --- Orders ---

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range o.Items {
		p, ok := s.products[it.ProductID]
		if !ok || p.TenantID != o.TenantID {
			return domain.Validationf("product %s is not available", it.ProductID)
		}
		if p.Stock < it.Quantity {
			return domain.Validationf("insufficient stock for %s", p.Name)
		}
	}
	var c coupon.Coupon
	if o.CouponCode != "" {
		var ok bool
		c, ok = s.coupons[key(o.TenantID, o.CouponCode)]
		if !ok || (c.MaxUses > 0 && c.Used >= c.MaxUses) {
			return domain.Validationf("coupon %s is no longer available", o.CouponCode)
		}
	}
	for _, existing := range s.orders {
		if existing.TenantID == o.TenantID && existing.OrderNumber == o.OrderNumber {
			return domain.ErrConflict
		}
	}

	for _, it := range o.Items {
		p := s.products[it.ProductID]
		p.Stock -= it.Quantity
		s.products[it.ProductID] = p
	}
	if o.CouponCode != "" {
		c.Used++
		s.coupons[key(o.TenantID, o.CouponCode)] = c
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) GetOrder(_ context.Context, tenantID, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) GetOrderByNumber(_ context.Context, tenantID, number string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.TenantID == tenantID && o.OrderNumber == number {
			return o.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) UpdateOrderStatus(_ context.Context, tenantID string, o *order.Order, expected order.Status) error {
	if s.BeforeOrderUpdate != nil {
		s.BeforeOrderUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok || cur.TenantID != tenantID || cur.Status != expected {
		return domain.ErrConflict
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) filterOrders(tenantID string, match func(*order.Order) bool) []order.Order {
	var out []order.Order
	for _, o := range s.orders {
		if o.TenantID == tenantID && match(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func matchFilter(f order.ListFilter) func(*order.Order) bool {
	return func(o *order.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		return f.Since.IsZero() || !o.CreatedAt.Before(f.Since)
	}
}

func (s *Store) ListOrders(_ context.Context, tenantID string, f order.ListFilter) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterOrders(tenantID, matchFilter(f)), f.Limit, f.Offset), nil
}

func (s *Store) CountOrders(_ context.Context, tenantID string, f order.ListFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterOrders(tenantID, matchFilter(f))), nil
}

func (s *Store) ListOrdersByPhone(_ context.Context, tenantID, phone string, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterOrders(tenantID, func(o *order.Order) bool { return o.Customer.Phone == phone }), limit, 0), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, tenantID, userID string, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.filterOrders(tenantID, func(o *order.Order) bool { return o.UserID == userID }), limit, 0), nil
}

func (s *Store) ListCustomerRecords(_ context.Context, tenantID string, limit, offset int) ([]customer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPhone := make(map[string]*customer.Record)
	// filterOrders sorts newest first, so the first order seen per phone is the latest.
	for _, o := range s.filterOrders(tenantID, func(o *order.Order) bool { return o.Status != order.StatusAbandoned }) {
		r, ok := byPhone[o.Customer.Phone]
		if !ok {
			r = &customer.Record{Phone: o.Customer.Phone, Name: o.Customer.Name, UserID: o.UserID, LastOrder: o.CreatedAt, PaidTotal: decimal.Zero}
			byPhone[o.Customer.Phone] = r
		}
		r.OrderCount++
		if o.Status.IsPaidEquivalent() {
			r.PaidTotal = r.PaidTotal.Add(o.Amounts.Total)
		}
	}
	out := make([]customer.Record, 0, len(byPhone))
	for _, r := range byPhone {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastOrder.After(out[j].LastOrder) })
	return page(out, limit, offset), nil
}

// --- Products ---

func (s *Store) ListProducts(_ context.Context, tenantID string, activeOnly bool) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []product.Product
	for _, p := range s.products {
		if p.TenantID == tenantID && (!activeOnly || p.Active) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, tenantID, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, tenantID string, ids []string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *product.Product, stockDelta int) error {
	if s.BeforeProductUpdate != nil {
		s.BeforeProductUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return domain.ErrNotFound
	}
	p.Stock = max(cur.Stock+stockDelta, 0)
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeactivateProduct(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrNotFound
	}
	p.Active = false
	s.products[id] = p
	return nil
}

func (s *Store) CountProducts(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.products {
		if p.TenantID == tenantID && p.Active {
			n++
		}
	}
	return n, nil
}

// --- Customers ---

func (s *Store) UpsertCustomerUser(_ context.Context, tenantID, phone, name string) (*customer.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.TenantID == tenantID && u.Phone == phone {
			if u.Name == "" && name != "" {
				u.Name = name
				s.users[id] = u
			}
			return &u, nil
		}
	}
	u := customer.User{ID: uuid.NewString(), TenantID: tenantID, Phone: phone, Name: name, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return &u, nil
}

func (s *Store) GetCustomerUser(_ context.Context, tenantID, id string) (*customer.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateSession(_ context.Context, sess *customer.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TokenHash] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, tokenHash string) (*customer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveOTP(_ context.Context, o *customer.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[key(o.TenantID, o.Phone)] = *o
	return nil
}

func (s *Store) GetOTP(_ context.Context, tenantID, phone string) (*customer.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otps[key(tenantID, phone)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *Store) IncrementOTPAttempts(_ context.Context, tenantID, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, phone)
	o, ok := s.otps[k]
	if !ok {
		return 0, domain.ErrNotFound
	}
	o.Attempts++
	s.otps[k] = o
	return o.Attempts, nil
}

func (s *Store) DeleteOTP(_ context.Context, tenantID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, key(tenantID, phone))
	return nil
}

// --- Admins ---

func (s *Store) CreateAdmin(_ context.Context, a *admin.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if existing.TenantID == a.TenantID && existing.Email == a.Email {
			return domain.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.admins[a.ID] = *a
	return nil
}

func (s *Store) GetAdmin(_ context.Context, tenantID, id string) (*admin.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok || a.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetAdminByEmail(_ context.Context, tenantID, email string) (*admin.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.TenantID == tenantID && a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

// --- Coupons ---

func (s *Store) ListCoupons(_ context.Context, tenantID string) ([]coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range s.coupons {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetCouponByCode(_ context.Context, tenantID, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[key(tenantID, code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCoupon(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(c.TenantID, c.Code)
	if _, ok := s.coupons[k]; ok {
		return domain.ErrConflict
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.coupons[k] = *c
	return nil
}

// --- Drafts ---

func (s *Store) UpsertDraft(_ context.Context, d *draft.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(d.TenantID, d.SessionID)
	if cur, ok := s.drafts[k]; ok {
		d.CreatedAt = cur.CreatedAt
	}
	s.drafts[k] = *d
	return nil
}

func (s *Store) ListDrafts(_ context.Context, tenantID string) ([]draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []draft.Draft
	for _, d := range s.drafts {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) ListStaleDrafts(_ context.Context, before time.Time, limit int) ([]draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []draft.Draft
	for _, d := range s.drafts {
		if d.UpdatedAt.Before(before) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, limit, 0), nil
}

func (s *Store) AbandonDraft(_ context.Context, d *draft.Draft, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(d.TenantID, d.SessionID)
	if _, ok := s.drafts[k]; !ok {
		return domain.ErrNotFound
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o.Clone()
	delete(s.drafts, k)
	return nil
}

func (s *Store) DeleteDraft(_ context.Context, tenantID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key(tenantID, sessionID))
	return nil
}
