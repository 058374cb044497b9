// Package admin defines back-office users and the authenticated admin principal.
package admin

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Strob0t/linkshop/internal/domain"
)

// Role represents the authorization level of an admin.
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
	// RoleSuper is granted only through the platform super-admin secret.
	RoleSuper Role = "super"
)

// ValidRoles is the set of roles that can be stored on an admin account.
var ValidRoles = map[Role]bool{
	RoleOwner: true,
	RoleStaff: true,
}

// Admin is a back-office account belonging to exactly one tenant.
type Admin struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the authenticated admin identity for one request.
// Handlers must scope every query by TenantID.
type Principal struct {
	AdminID  string `json:"admin_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// IsSuper reports whether the principal came from the super-admin secret.
func (p *Principal) IsSuper() bool {
	return p.Role == RoleSuper
}

// Actor returns the identifier recorded in order history.
func (p *Principal) Actor() string {
	if p.IsSuper() {
		return "super-admin"
	}
	return "admin:" + p.AdminID
}

// CreateRequest is the input for creating an admin account.
type CreateRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role     Role   `json:"role"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.TenantID == "" {
		return domain.Validationf("tenant is required")
	}
	if r.Email == "" {
		return domain.Validationf("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return domain.Validationf("invalid email format")
	}
	if r.Name == "" {
		return domain.Validationf("name is required")
	}
	if len(r.Password) < 8 {
		return domain.Validationf("password must be at least 8 characters")
	}
	if r.Role == "" {
		r.Role = RoleStaff
	}
	if !ValidRoles[r.Role] {
		return domain.Validationf("invalid role: must be owner or staff")
	}
	return nil
}

// LoginRequest is the input for admin authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return domain.Validationf("email is required")
	}
	if r.Password == "" {
		return domain.Validationf("password is required")
	}
	return nil
}

// LoginResponse is returned after a successful admin login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Admin       Admin     `json:"admin"`
}
