package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/port/database/dbtest"
	"github.com/Strob0t/linkshop/internal/secrets"
)

func newTestAuthService(t *testing.T) (*AuthService, *dbtest.Store) {
	t.Helper()
	store := dbtest.New()
	return NewAuthService(store, testAuthConfig(), testSecrets()), store
}

func createTestAdmin(t *testing.T, svc *AuthService, tenantID string) *admin.Admin {
	t.Helper()
	a, err := svc.CreateAdmin(context.Background(), admin.CreateRequest{
		TenantID: tenantID,
		Email:    "Owner@Tea.hk",
		Name:     "Owner",
		Password: "correct-horse",
		Role:     admin.RoleOwner,
	})
	require.NoError(t, err)
	return a
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	svc, _ := newTestAuthService(t)
	a := createTestAdmin(t, svc, "tenant-a")
	assert.Equal(t, "owner@tea.hk", a.Email)
	assert.NotEqual(t, "correct-horse", a.PasswordHash)

	resp, err := svc.Login(context.Background(), "tenant-a", admin.LoginRequest{Email: "owner@tea.hk", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, a.ID, resp.Admin.ID)

	p, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.Principal{AdminID: a.ID, TenantID: "tenant-a", Email: "owner@tea.hk", Role: admin.RoleOwner}, *p)
	assert.Equal(t, "admin:"+a.ID, p.Actor())

	me, err := svc.Me(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a.ID, me.ID)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newTestAuthService(t)
	createTestAdmin(t, svc, "tenant-a")
	ctx := context.Background()

	_, err := svc.Login(ctx, "tenant-a", admin.LoginRequest{Email: "owner@tea.hk", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Login(ctx, "tenant-a", admin.LoginRequest{Email: "nobody@tea.hk", Password: "correct-horse"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Admins belong to one tenant only.
	_, err = svc.Login(ctx, "tenant-b", admin.LoginRequest{Email: "owner@tea.hk", Password: "correct-horse"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Login(ctx, "tenant-a", admin.LoginRequest{Email: "", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	svc, _ := newTestAuthService(t)
	a := createTestAdmin(t, svc, "tenant-a")

	sign := func(claims adminClaims, key string, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	valid := func() adminClaims {
		return adminClaims{
			TenantID: "tenant-a", AdminID: a.ID, Email: a.Email, Role: admin.RoleOwner,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "linkshop",
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}
	key := testSecrets()[secrets.JWTSecret]

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	foreignIssuer := valid()
	foreignIssuer.Issuer = "someone-else"
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	superRole := valid()
	superRole.Role = admin.RoleSuper

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong key", sign(valid(), "another-key", jwt.SigningMethodHS256)},
		{"wrong alg", sign(valid(), key, jwt.SigningMethodHS512)},
		{"expired", sign(expired, key, jwt.SigningMethodHS256)},
		{"issuer", sign(foreignIssuer, key, jwt.SigningMethodHS256)},
		{"no expiry", sign(noExpiry, key, jwt.SigningMethodHS256)},
		{"super role in token", sign(superRole, key, jwt.SigningMethodHS256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestAuthService_SuperSecret(t *testing.T) {
	svc, _ := newTestAuthService(t)

	p, err := svc.AuthenticateSuper("super-secret", "tenant-a")
	require.NoError(t, err)
	assert.True(t, p.IsSuper())
	assert.Equal(t, "tenant-a", p.TenantID)
	assert.Equal(t, "super-admin", p.Actor())

	me, err := svc.Me(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, admin.RoleSuper, me.Role)

	_, err = svc.AuthenticateSuper("super-secreT", "tenant-a")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.AuthenticateSuper("super-secret", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	disabled := NewAuthService(dbtest.New(), testAuthConfig(), fakeSecrets{})
	_, err = disabled.AuthenticateSuper("", "tenant-a")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_DuplicateAdmin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	createTestAdmin(t, svc, "tenant-a")
	_, err := svc.CreateAdmin(context.Background(), admin.CreateRequest{
		TenantID: "tenant-a", Email: "owner@tea.hk", Name: "Again", Password: "long-enough",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
