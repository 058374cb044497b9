// Package draft defines saved checkout drafts used for cart recovery.
package draft

import (
	"time"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/customer"
)

// MaxSessionIDLength bounds the client-chosen checkout session id.
const MaxSessionIDLength = 64

// Item is a draft cart line.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Draft is an in-progress checkout, unique per (tenant, session).
type Draft struct {
	TenantID  string    `json:"tenant_id"`
	SessionID string    `json:"session_id"`
	Phone     string    `json:"phone,omitempty"`
	Name      string    `json:"name,omitempty"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveRequest is the body of PUT /api/checkout/draft.
type SaveRequest struct {
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
	Items []Item `json:"items"`
}

// Validate checks the request. A phone is optional while drafting but
// must be well-formed when present.
func (r *SaveRequest) Validate() error {
	if r.Phone != "" {
		p, err := customer.NormalizePhone(r.Phone)
		if err != nil {
			return err
		}
		r.Phone = p
	}
	if len(r.Items) > 50 {
		return domain.Validationf("too many items (max 50)")
	}
	for _, it := range r.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.Quantity > 99 {
			return domain.Validationf("each item needs a product_id and a quantity between 1 and 99")
		}
	}
	return nil
}

// ValidateSessionID checks the checkout session header value.
func ValidateSessionID(id string) error {
	if id == "" || len(id) > MaxSessionIDLength {
		return domain.Validationf("X-Checkout-Session header must be 1-%d characters", MaxSessionIDLength)
	}
	return nil
}

// Recoverable reports whether d can become an abandoned order: it has a
// phone, at least one item and has been idle since before cutoff.
func (d *Draft) Recoverable(cutoff time.Time) bool {
	return d.Phone != "" && len(d.Items) > 0 && d.UpdatedAt.Before(cutoff)
}
