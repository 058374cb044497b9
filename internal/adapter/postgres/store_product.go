package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/product"
)

const productColumns = `id, tenant_id, name, description, price, stock, active, sort_order, image_url, created_at, updated_at`

func scanProduct(row scannable) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active,
		&p.SortOrder, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// --- Products ---

func (s *Store) ListProducts(ctx context.Context, tenantID string, activeOnly bool) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE tenant_id = $1 AND (active OR NOT $2)
		 ORDER BY sort_order ASC, created_at ASC`, tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id string) (*product.Product, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get product %s: %w", id, domain.ErrNotFound)
	}
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, notFoundWrap(err, "get product %s", id)
	}
	return &p, nil
}

// GetProductsByIDs returns the tenant's products among ids. Unknown and
// malformed IDs are skipped.
func (s *Store) GetProductsByIDs(ctx context.Context, tenantID string, ids []string) ([]product.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = ANY($2::uuid[])`,
		tenantID, valid)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, tenant_id, name, description, price, stock, active, sort_order, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.TenantID, p.Name, p.Description, p.Price, p.Stock, p.Active, p.SortOrder, p.ImageURL,
		defaultNow(p.CreatedAt), defaultNow(p.UpdatedAt))
	if err != nil {
		return uniqueWrap(err, "create product")
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *product.Product, stockDelta int) error {
	if !isUUID(p.ID) {
		return fmt.Errorf("update product %s: %w", p.ID, domain.ErrNotFound)
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE products SET name = $3, description = $4, price = $5, stock = GREATEST(stock + $6, 0),
		   active = $7, sort_order = $8, image_url = $9, updated_at = $10
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING stock`,
		p.ID, p.TenantID, p.Name, p.Description, p.Price, stockDelta, p.Active, p.SortOrder, p.ImageURL,
		defaultNow(p.UpdatedAt)).Scan(&p.Stock)
	if err != nil {
		return notFoundWrap(err, "update product %s", p.ID)
	}
	return nil
}

func (s *Store) DeactivateProduct(ctx context.Context, tenantID, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("deactivate product %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
	return execExpectOne(tag, err, "deactivate product %s", id)
}

// CountProducts counts active products, the ones held against the SKU limit.
func (s *Store) CountProducts(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE tenant_id = $1 AND active`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
