// Package coupon defines discount codes and how they apply to a subtotal.
package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
)

// Kind is the discount type.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Coupon is a tenant discount code.
type Coupon struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	MaxUses     int             `json:"max_uses"`
	Used        int             `json:"used"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount returns the amount taken off subtotal, or a validation error when
// the coupon cannot be used at now. The discount never exceeds subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	switch {
	case !c.Active:
		return decimal.Zero, domain.Validationf("coupon %s is not active", c.Code)
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return decimal.Zero, domain.Validationf("coupon %s has expired", c.Code)
	case c.MaxUses > 0 && c.Used >= c.MaxUses:
		return decimal.Zero, domain.Validationf("coupon %s has been fully redeemed", c.Code)
	case subtotal.LessThan(c.MinSubtotal):
		return decimal.Zero, domain.Validationf("coupon %s requires a subtotal of at least %s", c.Code, c.MinSubtotal.StringFixed(2))
	}

	var d decimal.Decimal
	if c.Kind == KindPercent {
		d = subtotal.Mul(c.Value).Div(hundred).Round(2)
	} else {
		d = c.Value
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d, nil
}

// CreateRequest is the input for creating a coupon.
type CreateRequest struct {
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	MaxUses     int             `json:"max_uses"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// Validate checks the request and normalizes the code.
func (r *CreateRequest) Validate() error {
	r.Code = NormalizeCode(r.Code)
	if len(r.Code) < 3 || len(r.Code) > 32 {
		return domain.Validationf("code must be 3-32 characters")
	}
	if strings.Trim(r.Code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_") != "" {
		return domain.Validationf("code may contain only letters, digits, '-' and '_'")
	}
	switch r.Kind {
	case KindPercent:
		if !r.Value.IsPositive() || r.Value.GreaterThan(hundred) {
			return domain.Validationf("percent value must be in (0, 100]")
		}
	case KindFixed:
		if !r.Value.IsPositive() {
			return domain.Validationf("fixed value must be positive")
		}
	default:
		return domain.Validationf("kind must be percent or fixed")
	}
	if r.MinSubtotal.IsNegative() || r.MaxUses < 0 {
		return domain.Validationf("min_subtotal and max_uses must not be negative")
	}
	return nil
}
