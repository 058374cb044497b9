package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/product"
	"github.com/Strob0t/linkshop/internal/port/database"
)

// ProductService manages the catalogue of a tenant.
type ProductService struct {
	store database.Store
	plans *PlanService
	now   func() time.Time
}

// NewProductService creates a ProductService.
func NewProductService(store database.Store, plans *PlanService) *ProductService {
	return &ProductService{store: store, plans: plans, now: time.Now}
}

// ListActive returns the storefront catalogue.
func (s *ProductService) ListActive(ctx context.Context, tenantID string) ([]product.Product, error) {
	return s.list(ctx, tenantID, true)
}

// ListAll returns every product, active or not, for the admin.
func (s *ProductService) ListAll(ctx context.Context, tenantID string) ([]product.Product, error) {
	return s.list(ctx, tenantID, false)
}

func (s *ProductService) list(ctx context.Context, tenantID string, activeOnly bool) ([]product.Product, error) {
	ps, err := s.store.ListProducts(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if ps == nil {
		ps = []product.Product{}
	}
	return ps, nil
}

// GetPublic returns an active product. Inactive products are not found.
func (s *ProductService) GetPublic(ctx context.Context, tenantID, id string) (*product.Product, error) {
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Get returns a product of the tenant.
func (s *ProductService) Get(ctx context.Context, tenantID, id string) (*product.Product, error) {
	p, err := s.store.GetProduct(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// Create adds a product once the tenant is below its SKU cap.
func (s *ProductService) Create(ctx context.Context, tenantID string, in product.Input) (*product.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.IsActive() {
		if err := s.plans.EnforceLimit(ctx, tenantID, plan.ResourceSKUs); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	p := &product.Product{ID: uuid.NewString(), TenantID: tenantID, CreatedAt: now}
	apply(p, in, now)
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	slog.InfoContext(ctx, "product created", "product_id", p.ID)
	return p, nil
}

// Update replaces the editable fields of a product. Reactivating a product
// counts against the SKU cap like a new one. Stock is written as the change
// from the value read here, so units sold in between are not restored.
func (s *ProductService) Update(ctx context.Context, tenantID, id string, in product.Input) (*product.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !p.Active && in.IsActive() {
		if err := s.plans.EnforceLimit(ctx, tenantID, plan.ResourceSKUs); err != nil {
			return nil, err
		}
	}
	delta := in.Stock - p.Stock
	apply(p, in, s.now().UTC())
	if err := s.store.UpdateProduct(ctx, p, delta); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// Delete deactivates a product. Past orders keep referring to it.
func (s *ProductService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.store.DeactivateProduct(ctx, tenantID, id); err != nil {
		return fmt.Errorf("deactivate product %s: %w", id, err)
	}
	slog.InfoContext(ctx, "product deactivated", "product_id", id)
	return nil
}

func apply(p *product.Product, in product.Input, now time.Time) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock
	p.Active = in.IsActive()
	p.SortOrder = in.SortOrder
	p.ImageURL = in.ImageURL
	p.UpdatedAt = now
}
