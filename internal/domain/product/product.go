// Package product defines the tenant product catalogue.
package product

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/linkshop/internal/domain"
)

// Product is a sellable item of one tenant.
type Product struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	SortOrder   int             `json:"sort_order"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Input is the create/update payload of a product.
type Input struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      *bool           `json:"active,omitempty"`
	SortOrder   int             `json:"sort_order"`
	ImageURL    string          `json:"image_url"`
}

// Validate checks the payload.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Validationf("name is required")
	}
	if len(in.Name) > 200 {
		return domain.Validationf("name too long (max 200 chars)")
	}
	if in.Price.IsNegative() {
		return domain.Validationf("price must not be negative")
	}
	if in.Price.Exponent() < -2 {
		return domain.Validationf("price has more than 2 decimal places")
	}
	if in.Stock < 0 {
		return domain.Validationf("stock must not be negative")
	}
	return nil
}

// IsActive returns the requested active flag, defaulting to true.
func (in *Input) IsActive() bool {
	return in.Active == nil || *in.Active
}
