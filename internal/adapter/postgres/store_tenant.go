package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
)

const tenantColumns = `id, slug, name, status, plan, plan_expires_at, trial_ends_at, currency, timezone,
	COALESCE(custom_domain, ''), branding, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var brandingJSON []byte
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Status, &t.Plan, &t.PlanExpiresAt, &t.TrialEndsAt,
		&t.Currency, &t.Timezone, &t.CustomDomain, &brandingJSON, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if len(brandingJSON) > 0 {
		if err := json.Unmarshal(brandingJSON, &t.Branding); err != nil {
			return t, fmt.Errorf("decode branding of tenant %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// --- Tenant CRUD ---

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name, plan, currency, timezone)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+tenantColumns,
		req.Slug, req.Name, string(req.Plan), req.Currency, req.Timezone,
	))
	if err != nil {
		return nil, uniqueWrap(err, "create tenant %s", req.Slug)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant by slug %s", slug)
	}
	return &t, nil
}

func (s *Store) GetTenantByDomain(ctx context.Context, host string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE lower(custom_domain) = lower($1)`, host))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant by domain %s", host)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) UpdateTenantPlan(ctx context.Context, id string, sub plan.Subscription) error {
	if !isUUID(id) {
		return fmt.Errorf("update tenant plan %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET plan = $2, plan_expires_at = $3, trial_ends_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, string(sub.Plan), sub.PlanExpiresAt, sub.TrialEndsAt)
	return execExpectOne(tag, err, "update tenant plan %s", id)
}
