package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/admin"
)

const adminColumns = `id, tenant_id, email, name, password_hash, role, enabled, created_at, updated_at`

func scanAdmin(row scannable) (admin.Admin, error) {
	var a admin.Admin
	err := row.Scan(&a.ID, &a.TenantID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// --- Admins ---

func (s *Store) CreateAdmin(ctx context.Context, a *admin.Admin) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO admins (id, tenant_id, email, name, password_hash, role, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, a.Email, a.Name, a.PasswordHash, string(a.Role), a.Enabled,
		defaultNow(a.CreatedAt), defaultNow(a.UpdatedAt))
	if err != nil {
		return uniqueWrap(err, "create admin %s", a.Email)
	}
	return nil
}

func (s *Store) GetAdmin(ctx context.Context, tenantID, id string) (*admin.Admin, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get admin %s: %w", id, domain.ErrNotFound)
	}
	a, err := scanAdmin(s.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, notFoundWrap(err, "get admin %s", id)
	}
	return &a, nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, tenantID, email string) (*admin.Admin, error) {
	a, err := scanAdmin(s.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE tenant_id = $1 AND email = $2`, tenantID, email))
	if err != nil {
		return nil, notFoundWrap(err, "get admin by email")
	}
	return &a, nil
}
