package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/port/database"
	"github.com/Strob0t/linkshop/internal/secrets"
)

// SecretSource returns the current value of a named secret. *secrets.Vault
// satisfies it, so a SIGHUP reload applies to the next request.
type SecretSource interface {
	Get(key string) string
}

// adminClaims is the payload of an admin access token.
type adminClaims struct {
	TenantID string     `json:"tid"`
	AdminID  string     `json:"aid"`
	Email    string     `json:"email"`
	Role     admin.Role `json:"role"`
	jwt.RegisteredClaims
}

// dummyHash is compared against when an email is unknown so a failed login
// takes the same time either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("linkshop-timing-guard"), bcrypt.MinCost)

// AuthService handles back-office authentication: password login, HS256
// access tokens and the platform super-admin secret.
type AuthService struct {
	store   database.Store
	cfg     config.Auth
	secrets SecretSource
	now     func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(store database.Store, cfg config.Auth, src SecretSource) *AuthService {
	return &AuthService{store: store, cfg: cfg, secrets: src, now: time.Now}
}

// CreateAdmin validates req and stores a new admin with a bcrypt password hash.
func (s *AuthService) CreateAdmin(ctx context.Context, req admin.CreateRequest) (*admin.Admin, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	a := &admin.Admin{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         req.Role,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAdmin(ctx, a); err != nil {
		return nil, fmt.Errorf("create admin %s: %w", req.Email, err)
	}
	slog.InfoContext(ctx, "admin created", "tenant_id", a.TenantID, "admin_id", a.ID, "role", a.Role)
	return a, nil
}

// Login checks the credentials of an admin of tenantID and issues an access token.
func (s *AuthService) Login(ctx context.Context, tenantID string, req admin.LoginRequest) (*admin.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	a, err := s.store.GetAdminByEmail(ctx, tenantID, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return nil, domain.Unauthorizedf("invalid email or password")
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.Unauthorizedf("invalid email or password")
	}
	if !a.Enabled {
		return nil, domain.Unauthorizedf("account is disabled")
	}

	token, exp, err := s.issueToken(a)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "admin logged in", "tenant_id", tenantID, "admin_id", a.ID)
	return &admin.LoginResponse{AccessToken: token, ExpiresAt: exp, Admin: *a}, nil
}

func (s *AuthService) issueToken(a *admin.Admin) (string, time.Time, error) {
	key := s.secrets.Get(secrets.JWTSecret)
	if key == "" {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	now := s.now()
	exp := now.Add(s.cfg.AccessTokenTTL)
	claims := adminClaims{
		TenantID: a.TenantID,
		AdminID:  a.ID,
		Email:    a.Email,
		Role:     a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.TokenIssuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateAccessToken verifies signature, issuer and expiry of token and
// returns the admin principal it carries.
func (s *AuthService) ValidateAccessToken(token string) (*admin.Principal, error) {
	key := s.secrets.Get(secrets.JWTSecret)
	if token == "" || key == "" {
		return nil, domain.Unauthorizedf("missing credentials")
	}
	var claims adminClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, domain.Unauthorizedf("invalid token")
	}
	if claims.TenantID == "" || claims.AdminID == "" || !admin.ValidRoles[claims.Role] {
		return nil, domain.Unauthorizedf("invalid token claims")
	}
	return &admin.Principal{
		AdminID:  claims.AdminID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		Role:     claims.Role,
	}, nil
}

// AuthenticateSuper checks the platform secret and returns a super principal
// acting on tenantID. An unset secret disables super-admin access.
func (s *AuthService) AuthenticateSuper(secret, tenantID string) (*admin.Principal, error) {
	want := s.secrets.Get(secrets.SuperAdminSecret)
	if want == "" || secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(want)) != 1 {
		return nil, domain.Unauthorizedf("invalid super-admin secret")
	}
	if tenantID == "" {
		return nil, domain.Unauthorizedf("super-admin requests need a tenant")
	}
	return &admin.Principal{TenantID: tenantID, Role: admin.RoleSuper}, nil
}

// Me returns the admin account behind p. The super principal has no account
// and is returned as a synthetic admin.
func (s *AuthService) Me(ctx context.Context, p *admin.Principal) (*admin.Admin, error) {
	if p.IsSuper() {
		return &admin.Admin{TenantID: p.TenantID, Name: "Super admin", Role: admin.RoleSuper, Enabled: true}, nil
	}
	a, err := s.store.GetAdmin(ctx, p.TenantID, p.AdminID)
	if err != nil {
		return nil, fmt.Errorf("admin %s: %w", p.AdminID, err)
	}
	return a, nil
}
