// Package tenant defines the shop tenant model.
package tenant

import (
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/plan"
)

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

const (
	DefaultCurrency = "HKD"
	DefaultTimezone = "Asia/Hong_Kong"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Link is one entry of the bio-link page.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Branding holds the public bio-link presentation data.
type Branding struct {
	LogoURL      string `json:"logo_url,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Links        []Link `json:"links,omitempty"`
}

// Tenant is an isolated shop.
type Tenant struct {
	ID            string     `json:"id"`
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	Status        Status     `json:"status"`
	Plan          plan.Tier  `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	Currency      string     `json:"currency"`
	Timezone      string     `json:"timezone"`
	CustomDomain  string     `json:"custom_domain,omitempty"`
	Branding      Branding   `json:"branding"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Subscription returns the plan state of t.
func (t *Tenant) Subscription() plan.Subscription {
	return plan.Subscription{Plan: t.Plan, PlanExpiresAt: t.PlanExpiresAt, TrialEndsAt: t.TrialEndsAt}
}

// Location returns the tenant's time zone, falling back to the default zone
// and then UTC when the stored name cannot be loaded.
func (t *Tenant) Location() *time.Location {
	name := t.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// Profile is the public bio-link view of a tenant.
type Profile struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Currency string   `json:"currency"`
	Branding Branding `json:"branding"`
}

// Profile returns the public view of t.
func (t *Tenant) Profile() Profile {
	return Profile{Slug: t.Slug, Name: t.Name, Currency: t.Currency, Branding: t.Branding}
}

// ValidateSlug checks the slug format.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return domain.Validationf("invalid slug %q: use 3-64 lowercase letters, digits or hyphens", slug)
	}
	return nil
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Plan     plan.Tier `json:"plan,omitempty"`
	Currency string    `json:"currency,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
}

// Validate checks the request and fills defaults.
func (r *CreateRequest) Validate() error {
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	if err := ValidateSlug(r.Slug); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return domain.Validationf("name is required")
	}
	if r.Plan == "" {
		r.Plan = plan.TierFree
	}
	if !plan.IsValid(r.Plan) {
		return domain.Validationf("unknown plan %q", r.Plan)
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if !currencyPattern.MatchString(r.Currency) {
		return domain.Validationf("currency must be an ISO 4217 code")
	}
	if r.Timezone == "" {
		r.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return domain.Validationf("unknown timezone %q", r.Timezone)
	}
	return nil
}

// PlanUpdate changes a tenant's subscription.
type PlanUpdate struct {
	Plan          plan.Tier  `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
	TrialEndsAt   *time.Time `json:"trial_ends_at"`
}

// Validate checks the requested tier.
func (u *PlanUpdate) Validate() error {
	if !plan.IsValid(u.Plan) {
		return domain.Validationf("unknown plan %q", u.Plan)
	}
	return nil
}

// Subscription returns the plan state the update sets.
func (u *PlanUpdate) Subscription() plan.Subscription {
	return plan.Subscription{Plan: u.Plan, PlanExpiresAt: u.PlanExpiresAt, TrialEndsAt: u.TrialEndsAt}
}
