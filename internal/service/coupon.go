package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/linkshop/internal/domain/coupon"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/port/database"
)

// CouponService manages discount codes.
type CouponService struct {
	store database.Store
	now   func() time.Time
}

// NewCouponService creates a CouponService.
func NewCouponService(store database.Store) *CouponService {
	return &CouponService{store: store, now: time.Now}
}

// List returns the tenant's coupons.
func (s *CouponService) List(ctx context.Context, tenantID string) ([]coupon.Coupon, error) {
	cs, err := s.store.ListCoupons(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	if cs == nil {
		cs = []coupon.Coupon{}
	}
	return cs, nil
}

// Create stores a new active coupon. Codes are unique per tenant.
func (s *CouponService) Create(ctx context.Context, tenantID string, req coupon.CreateRequest) (*coupon.Coupon, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c := &coupon.Coupon{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Code:        req.Code,
		Kind:        req.Kind,
		Value:       req.Value,
		MinSubtotal: req.MinSubtotal,
		MaxUses:     req.MaxUses,
		ExpiresAt:   req.ExpiresAt,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return nil, fmt.Errorf("create coupon %s: %w", c.Code, err)
	}
	return c, nil
}

// CustomerService serves the CRM listing.
type CustomerService struct {
	store database.Store
}

// NewCustomerService creates a CustomerService.
func NewCustomerService(store database.Store) *CustomerService {
	return &CustomerService{store: store}
}

// List returns customers grouped by phone with order counts and paid totals,
// most recent buyers first.
func (s *CustomerService) List(ctx context.Context, tenantID string, limit, offset int) ([]customer.Record, error) {
	if offset < 0 {
		offset = 0
	}
	rs, err := s.store.ListCustomerRecords(ctx, tenantID, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	if rs == nil {
		rs = []customer.Record{}
	}
	return rs, nil
}
