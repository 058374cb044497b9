package middleware

import (
	"net/http"

	"github.com/Strob0t/linkshop/internal/domain/admin"
)

// RequireRole returns middleware that restricts access to admins with one of the given roles.
func RequireRole(roles ...admin.Role) func(http.Handler) http.Handler {
	allowed := make(map[admin.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization required")
				return
			}

			if !allowed[p.Role] {
				writeError(w, http.StatusForbidden, CodeForbidden, "your role cannot perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
