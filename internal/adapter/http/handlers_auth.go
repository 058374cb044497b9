package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/middleware"
)

const adminCookiePath = "/api/admin"

func (h *Handlers) setCookie(w http.ResponseWriter, name, value, path string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// AdminLogin handles POST /api/admin/auth/login
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[admin.LoginRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Auth.Login(r.Context(), t.ID, req)
	if err != nil {
		slog.DebugContext(r.Context(), "admin login failed", "email", req.Email, "error", err)
		writeDomainError(w, r, err)
		return
	}
	h.setCookie(w, middleware.CookieAdminSession, resp.AccessToken, adminCookiePath, resp.ExpiresAt)
	writeJSON(w, http.StatusOK, resp)
}

// AdminLogout handles POST /api/admin/auth/logout. Tokens are stateless;
// logging out drops the cookie and the client forgets its bearer token.
func (h *Handlers) AdminLogout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w, middleware.CookieAdminSession, adminCookiePath)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// AdminMe handles GET /api/admin/auth/me
func (h *Handlers) AdminMe(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	a, err := h.Auth.Me(r.Context(), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SendOTP handles POST /api/auth/send-otp
func (h *Handlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[customer.SendOTPRequest](w, r)
	if !ok {
		return
	}
	if err := h.CustomerAuth.SendOTP(r.Context(), t, req.Phone); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[customer.VerifyOTPRequest](w, r)
	if !ok {
		return
	}
	login, err := h.CustomerAuth.VerifyOTP(r.Context(), t.ID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.setCookie(w, middleware.CookieCustomerSession, login.Token, "/", login.ExpiresAt)
	writeJSON(w, http.StatusOK, login)
}

// CustomerLogout handles POST /api/auth/logout
func (h *Handlers) CustomerLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionTokenFromContext(r.Context()); token != "" {
		if err := h.CustomerAuth.Logout(r.Context(), token); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	h.clearCookie(w, middleware.CookieCustomerSession, "/")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// CustomerMe handles GET /api/auth/me
func (h *Handlers) CustomerMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.CustomerFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "please sign in")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
