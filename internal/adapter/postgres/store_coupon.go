package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/linkshop/internal/domain/coupon"
)

const couponColumns = `id, tenant_id, code, kind, value, min_subtotal, max_uses, used, expires_at, active, created_at`

func scanCoupon(row scannable) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.ID, &c.TenantID, &c.Code, &c.Kind, &c.Value, &c.MinSubtotal, &c.MaxUses, &c.Used,
		&c.ExpiresAt, &c.Active, &c.CreatedAt)
	return c, err
}

// --- Coupons ---

func (s *Store) ListCoupons(ctx context.Context, tenantID string) ([]coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 ORDER BY code ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (s *Store) GetCouponByCode(ctx context.Context, tenantID, code string) (*coupon.Coupon, error) {
	c, err := scanCoupon(s.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 AND code = $2`, tenantID, code))
	if err != nil {
		return nil, notFoundWrap(err, "get coupon %s", code)
	}
	return &c, nil
}

func (s *Store) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO coupons (id, tenant_id, code, kind, value, min_subtotal, max_uses, used, expires_at, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.TenantID, c.Code, string(c.Kind), c.Value, c.MinSubtotal, c.MaxUses, c.Used, c.ExpiresAt, c.Active,
		defaultNow(c.CreatedAt))
	if err != nil {
		return uniqueWrap(err, "create coupon %s", c.Code)
	}
	return nil
}
