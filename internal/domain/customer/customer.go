// Package customer defines storefront shoppers, their phone identity and sessions.
package customer

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
)

var localPhone = regexp.MustCompile(`^[2-9]\d{7}$`)

// NormalizePhone accepts an 8-digit Hong Kong number with an optional
// +852 or 852 prefix and returns the 8-digit local form.
// Spaces and hyphens are ignored.
func NormalizePhone(raw string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if len(p) == 11 && strings.HasPrefix(p, "852") {
		p = p[3:]
	}
	if !localPhone.MatchString(p) {
		return "", domain.Validationf("invalid phone number")
	}
	return p, nil
}

// User is a storefront customer, unique per (tenant, phone).
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a persisted customer login. Only the token hash is stored.
type Session struct {
	TokenHash string
	UserID    string
	TenantID  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionUser is the identity resolved from a session cookie.
type SessionUser struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Phone    string `json:"phone"`
}

// OTP is a one-time login code. Only its bcrypt hash is stored.
type OTP struct {
	TenantID  string
	Phone     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is past its expiry at now.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// SendOTPRequest is the input of POST /api/auth/send-otp.
type SendOTPRequest struct {
	Phone string `json:"phone"`
}

// VerifyOTPRequest is the input of POST /api/auth/verify-otp.
type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	Name  string `json:"name,omitempty"`
}

// Validate normalizes the phone and checks the code shape.
func (r *VerifyOTPRequest) Validate() error {
	p, err := NormalizePhone(r.Phone)
	if err != nil {
		return err
	}
	r.Phone = p
	if len(r.Code) != 6 || strings.Trim(r.Code, "0123456789") != "" {
		return domain.Validationf("code must be 6 digits")
	}
	return nil
}

// Record is the CRM view of a customer with order statistics.
type Record struct {
	Phone      string          `json:"phone"`
	Name       string          `json:"name"`
	UserID     string          `json:"user_id,omitempty"`
	OrderCount int             `json:"order_count"`
	PaidTotal  decimal.Decimal `json:"paid_total"`
	LastOrder  time.Time       `json:"last_order_at"`
}
