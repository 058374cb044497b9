package order

import (
	"strings"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/customer"
)

const (
	MaxCheckoutLines = 50
	MaxLineQuantity  = 99
)

// CheckoutItem is one requested line. Prices are never taken from the client.
type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest is the storefront checkout payload.
type CheckoutRequest struct {
	Items      []CheckoutItem `json:"items"`
	Customer   Contact        `json:"customer"`
	CouponCode string         `json:"coupon_code,omitempty"`
	Note       string         `json:"note,omitempty"`
}

// Validate checks shape and limits, normalizes the phone and merges
// duplicate product lines.
func (r *CheckoutRequest) Validate() error {
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	if r.Customer.Name == "" {
		return domain.Validationf("customer name is required")
	}
	phone, err := customer.NormalizePhone(r.Customer.Phone)
	if err != nil {
		return err
	}
	r.Customer.Phone = phone
	if len(r.Note) > 500 {
		return domain.Validationf("note too long (max 500 chars)")
	}
	if len(r.Items) == 0 {
		return domain.Validationf("at least one item is required")
	}
	if len(r.Items) > MaxCheckoutLines {
		return domain.Validationf("too many items (max %d)", MaxCheckoutLines)
	}

	merged := make([]CheckoutItem, 0, len(r.Items))
	index := make(map[string]int, len(r.Items))
	for _, it := range r.Items {
		if it.ProductID == "" {
			return domain.Validationf("product_id is required")
		}
		if it.Quantity < 1 || it.Quantity > MaxLineQuantity {
			return domain.Validationf("quantity must be between 1 and %d", MaxLineQuantity)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			if merged[i].Quantity > MaxLineQuantity {
				return domain.Validationf("quantity must be between 1 and %d", MaxLineQuantity)
			}
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	r.Items = merged
	return nil
}

// ProductIDs returns the distinct product IDs of the request.
func (r *CheckoutRequest) ProductIDs() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// TransitionRequest is the admin payload for a generic status change.
type TransitionRequest struct {
	Status string `json:"status"`
}
