package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/customer"
)

// --- Customer users ---

// UpsertCustomerUser returns the user for (tenant, phone), creating it on
// first login. A stored empty name is filled from name.
func (s *Store) UpsertCustomerUser(ctx context.Context, tenantID, phone, name string) (*customer.User, error) {
	var u customer.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customer_users (tenant_id, phone, name) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, phone) DO UPDATE
		   SET name = CASE WHEN customer_users.name = '' THEN EXCLUDED.name ELSE customer_users.name END
		 RETURNING id, tenant_id, phone, name, created_at`,
		tenantID, phone, name,
	).Scan(&u.ID, &u.TenantID, &u.Phone, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert customer %s: %w", phone, err)
	}
	return &u, nil
}

func (s *Store) GetCustomerUser(ctx context.Context, tenantID, id string) (*customer.User, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get customer %s: %w", id, domain.ErrNotFound)
	}
	var u customer.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, phone, name, created_at FROM customer_users WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&u.ID, &u.TenantID, &u.Phone, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get customer %s", id)
	}
	return &u, nil
}

// --- Sessions ---

func (s *Store) CreateSession(ctx context.Context, sess *customer.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customer_sessions (token_hash, user_id, tenant_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.TokenHash, sess.UserID, sess.TenantID, sess.ExpiresAt, defaultNow(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (*customer.Session, error) {
	var sess customer.Session
	err := s.pool.QueryRow(ctx,
		`SELECT token_hash, user_id, tenant_id, expires_at, created_at FROM customer_sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&sess.TokenHash, &sess.UserID, &sess.TenantID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get session")
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM customer_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customer_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- OTP codes ---

// SaveOTP replaces any live code for the phone; only one is valid at a time.
func (s *Store) SaveOTP(ctx context.Context, o *customer.OTP) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO otp_codes (tenant_id, phone, code_hash, attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id, phone) DO UPDATE
		   SET code_hash = EXCLUDED.code_hash, attempts = EXCLUDED.attempts,
		       expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		o.TenantID, o.Phone, o.CodeHash, o.Attempts, o.ExpiresAt, defaultNow(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

func (s *Store) GetOTP(ctx context.Context, tenantID, phone string) (*customer.OTP, error) {
	var o customer.OTP
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, phone, code_hash, attempts, expires_at, created_at
		 FROM otp_codes WHERE tenant_id = $1 AND phone = $2`,
		tenantID, phone,
	).Scan(&o.TenantID, &o.Phone, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get otp")
	}
	return &o, nil
}

// IncrementOTPAttempts bumps the attempt counter atomically and returns the new value.
func (s *Store) IncrementOTPAttempts(ctx context.Context, tenantID, phone string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`UPDATE otp_codes SET attempts = attempts + 1 WHERE tenant_id = $1 AND phone = $2 RETURNING attempts`,
		tenantID, phone,
	).Scan(&n)
	if err != nil {
		return 0, notFoundWrap(err, "increment otp attempts")
	}
	return n, nil
}

func (s *Store) DeleteOTP(ctx context.Context, tenantID, phone string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM otp_codes WHERE tenant_id = $1 AND phone = $2`, tenantID, phone); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
