package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"

	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/customer"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/database"
	"github.com/Strob0t/linkshop/internal/port/ratelimit"
	"github.com/Strob0t/linkshop/internal/port/sms"
)

const sessionTokenBytes = 32

// CustomerLogin is the result of a successful OTP verification. Token is
// returned to the client once; only its hash is stored.
type CustomerLogin struct {
	Token     string        `json:"-"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      customer.User `json:"user"`
}

// CustomerAuthService handles storefront phone login with one-time codes
// and opaque session tokens.
type CustomerAuthService struct {
	store   database.Store
	sender  sms.Sender
	cfg     config.Auth
	metrics *lsotel.Metrics
	now     func() time.Time
	newCode func() (string, error)

	phoneLimiter ratelimit.Limiter
	phoneRule    ratelimit.Rule
}

// NewCustomerAuthService creates a CustomerAuthService. metrics may be nil.
func NewCustomerAuthService(store database.Store, sender sms.Sender, cfg config.Auth, metrics *lsotel.Metrics) *CustomerAuthService {
	return &CustomerAuthService{
		store:   store,
		sender:  sender,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		newCode: generateOTP,
	}
}

// LimitPerPhone caps how many codes one phone receives per tenant, whatever
// address the requests come from. Limiter errors let the code through.
func (s *CustomerAuthService) LimitPerPhone(limiter ratelimit.Limiter, rule ratelimit.Rule) {
	s.phoneLimiter = limiter
	s.phoneRule = rule
}

func (s *CustomerAuthService) allowPhone(ctx context.Context, tenantID, phone string) error {
	if s.phoneLimiter == nil {
		return nil
	}
	res, err := s.phoneLimiter.Allow(ctx, "send_otp_phone:"+tenantID+":"+phone, s.phoneRule)
	if err != nil {
		slog.WarnContext(ctx, "phone rate limiter unavailable", "error", err)
		return nil
	}
	if !res.Allowed {
		s.metrics.RateLimited(ctx, "send_otp_phone")
		return fmt.Errorf("%w: too many codes sent to this phone, please try again later", domain.ErrRateLimited)
	}
	return nil
}

// SendOTP issues a fresh code for phone, replacing any pending one, and
// delivers it by SMS. A delivery failure removes the stored code.
func (s *CustomerAuthService) SendOTP(ctx context.Context, t *tenant.Tenant, rawPhone string) error {
	phone, err := customer.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if err := s.allowPhone(ctx, t.ID, phone); err != nil {
		return err
	}
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	now := s.now().UTC()
	otp := &customer.OTP{
		TenantID:  t.ID,
		Phone:     phone,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}
	if err := s.store.SaveOTP(ctx, otp); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	msg := fmt.Sprintf("%s login code: %s. Valid for %d minutes.", t.Name, code, int(s.cfg.OTPTTL.Minutes()))
	if err := s.sender.Send(ctx, phone, msg); err != nil {
		if delErr := s.store.DeleteOTP(ctx, t.ID, phone); delErr != nil {
			slog.WarnContext(ctx, "delete undelivered otp failed", "error", delErr)
		}
		return fmt.Errorf("send otp: %w", err)
	}
	s.metrics.OTPIssued(ctx, t.ID)
	return nil
}

// VerifyOTP checks the code for the phone and, on success, creates or loads
// the customer and opens a session. Every wrong code counts as an attempt;
// the code is discarded once the attempts run out or it expires.
func (s *CustomerAuthService) VerifyOTP(ctx context.Context, tenantID string, req customer.VerifyOTPRequest) (*CustomerLogin, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	otp, err := s.store.GetOTP(ctx, tenantID, req.Phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthorizedf("invalid or expired code")
		}
		return nil, fmt.Errorf("get otp: %w", err)
	}
	now := s.now()
	if otp.Expired(now) || otp.Attempts >= s.cfg.OTPMaxAttempts {
		s.discardOTP(ctx, tenantID, req.Phone)
		return nil, domain.Unauthorizedf("invalid or expired code")
	}
	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(req.Code)) != nil {
		n, err := s.store.IncrementOTPAttempts(ctx, tenantID, req.Phone)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("count otp attempt: %w", err)
		}
		if n >= s.cfg.OTPMaxAttempts {
			s.discardOTP(ctx, tenantID, req.Phone)
			return nil, domain.Unauthorizedf("too many attempts, request a new code")
		}
		return nil, domain.Unauthorizedf("invalid or expired code")
	}
	s.discardOTP(ctx, tenantID, req.Phone)

	u, err := s.store.UpsertCustomerUser(ctx, tenantID, req.Phone, req.Name)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	sess := &customer.Session{
		TokenHash: hashToken(token),
		UserID:    u.ID,
		TenantID:  tenantID,
		ExpiresAt: now.Add(s.cfg.SessionTTL).UTC(),
		CreatedAt: now.UTC(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.InfoContext(ctx, "customer logged in", "user_id", u.ID)
	return &CustomerLogin{Token: token, ExpiresAt: sess.ExpiresAt, User: *u}, nil
}

// GetSessionUser resolves a session token for tenantID. Sessions of another
// tenant are treated as absent.
func (s *CustomerAuthService) GetSessionUser(ctx context.Context, tenantID, token string) (*customer.SessionUser, error) {
	if token == "" {
		return nil, domain.Unauthorizedf("not logged in")
	}
	h := hashToken(token)
	sess, err := s.store.GetSession(ctx, h)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthorizedf("not logged in")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.TenantID != tenantID {
		return nil, domain.Unauthorizedf("not logged in")
	}
	if !s.now().Before(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, h); err != nil {
			slog.WarnContext(ctx, "delete expired session failed", "error", err)
		}
		return nil, domain.Unauthorizedf("session expired")
	}
	u, err := s.store.GetCustomerUser(ctx, tenantID, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthorizedf("not logged in")
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer.SessionUser{UserID: u.ID, TenantID: u.TenantID, Phone: u.Phone}, nil
}

// Logout deletes the session behind token. Unknown tokens are ignored.
func (s *CustomerAuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, hashToken(token)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// StartSessionCleanup deletes expired sessions every interval until ctx is
// cancelled.
func (s *CustomerAuthService) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.DeleteExpiredSessions(ctx, s.now())
				if err != nil {
					slog.ErrorContext(ctx, "session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.InfoContext(ctx, "expired sessions removed", "count", n)
				}
			}
		}
	}()
}

func (s *CustomerAuthService) discardOTP(ctx context.Context, tenantID, phone string) {
	if err := s.store.DeleteOTP(ctx, tenantID, phone); err != nil {
		slog.WarnContext(ctx, "delete otp failed", "error", err)
	}
}

// generateOTP returns a uniformly random 6-digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
