package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/customer"
)

// Cookie and header names used for authentication.
const (
	CookieAdminSession    = "admin_session"
	CookieCustomerSession = "session"
	HeaderSuperAdmin      = "X-Super-Admin-Secret"
)

type principalCtxKey struct{}
type customerCtxKey struct{}
type sessionTokenCtxKey struct{}

// AdminAuthenticator validates admin credentials.
type AdminAuthenticator interface {
	ValidateAccessToken(token string) (*admin.Principal, error)
	AuthenticateSuper(secret, tenantID string) (*admin.Principal, error)
}

// SessionResolver resolves opaque customer session tokens.
type SessionResolver interface {
	GetSessionUser(ctx context.Context, tenantID, token string) (*customer.SessionUser, error)
}

// AdminAuth returns middleware that requires an admin principal. It must run
// after Tenant. Credentials are tried in order: the super-admin secret
// header, a Bearer token, then the admin_session cookie. A token issued for
// another shop than the resolved one is rejected.
func AdminAuth(authn AdminAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := TenantFromContext(r.Context())
			if t == nil {
				writeError(w, http.StatusNotFound, CodeNotFound, "shop not found")
				return
			}

			p, err := authenticateAdmin(r, authn, t.ID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, domain.PublicMessage(err, domain.ErrUnauthorized))
				return
			}
			if p.TenantID != t.ID {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "token was issued for another shop")
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticateAdmin(r *http.Request, authn AdminAuthenticator, tenantID string) (*admin.Principal, error) {
	if secret := r.Header.Get(HeaderSuperAdmin); secret != "" {
		return authn.AuthenticateSuper(secret, tenantID)
	}
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			return nil, domain.Unauthorizedf("invalid authorization header")
		}
		return authn.ValidateAccessToken(token)
	}
	if c, err := r.Cookie(CookieAdminSession); err == nil && c.Value != "" {
		return authn.ValidateAccessToken(c.Value)
	}
	return nil, domain.Unauthorizedf("authorization required")
}

// PrincipalFromContext returns the authenticated admin, or nil.
func PrincipalFromContext(ctx context.Context) *admin.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*admin.Principal)
	return p
}

// WithPrincipal stores p in ctx the way AdminAuth does.
func WithPrincipal(ctx context.Context, p *admin.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// CustomerSession returns middleware that attaches the signed-in customer,
// if any, to the request. Invalid or foreign sessions are treated as absent.
func CustomerSession(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := TenantFromContext(r.Context())
			c, err := r.Cookie(CookieCustomerSession)
			if t == nil || err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), sessionTokenCtxKey{}, c.Value)
			if u, err := sessions.GetSessionUser(ctx, t.ID, c.Value); err == nil {
				ctx = context.WithValue(ctx, customerCtxKey{}, u)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCustomer rejects requests without a customer session with 401.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CustomerFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "please sign in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CustomerFromContext returns the signed-in customer, or nil.
func CustomerFromContext(ctx context.Context) *customer.SessionUser {
	u, _ := ctx.Value(customerCtxKey{}).(*customer.SessionUser)
	return u
}

// SessionTokenFromContext returns the raw customer session cookie value.
func SessionTokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionTokenCtxKey{}).(string)
	return s
}

// WithCustomer stores u in ctx the way CustomerSession does.
func WithCustomer(ctx context.Context, u *customer.SessionUser) context.Context {
	return context.WithValue(ctx, customerCtxKey{}, u)
}
