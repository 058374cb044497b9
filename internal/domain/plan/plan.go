// Package plan defines subscription tiers, their limits and feature sets.
package plan

import (
	"time"
)

// Tier is a subscription level. Tiers are ordered free < starter < pro.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
)

// Feature is a capability gated by tier.
type Feature string

const (
	FeatureAnalytics    Feature = "analytics"
	FeatureCRM          Feature = "crm"
	FeatureCartRecovery Feature = "cart_recovery"
	FeatureCoupon       Feature = "coupon"
)

// Resource is a countable quantity capped by tier.
type Resource string

const (
	ResourceSKUs   Resource = "skus"
	ResourceOrders Resource = "orders"
)

// Unlimited is the limit value meaning "no cap".
const Unlimited = 0

// Limits holds the per-resource caps of a tier.
type Limits struct {
	SKUs   int `json:"skus"`
	Orders int `json:"orders"`
}

// Of returns the cap for r.
func (l Limits) Of(r Resource) int {
	switch r {
	case ResourceSKUs:
		return l.SKUs
	case ResourceOrders:
		return l.Orders
	}
	return Unlimited
}

type definition struct {
	rank     int
	limits   Limits
	features []Feature
}

var tiers = map[Tier]definition{
	TierFree:    {rank: 0, limits: Limits{SKUs: 10, Orders: 50}},
	TierStarter: {rank: 1, limits: Limits{SKUs: 100, Orders: 500}, features: []Feature{FeatureAnalytics, FeatureCoupon}},
	TierPro: {rank: 2, limits: Limits{SKUs: Unlimited, Orders: Unlimited}, features: []Feature{
		FeatureAnalytics, FeatureCRM, FeatureCartRecovery, FeatureCoupon,
	}},
}

// Normalize maps unknown or empty tiers to free.
func Normalize(t Tier) Tier {
	if _, ok := tiers[t]; ok {
		return t
	}
	return TierFree
}

// IsValid reports whether t is a known tier.
func IsValid(t Tier) bool {
	_, ok := tiers[t]
	return ok
}

// LimitsFor returns the caps of t (free for unknown tiers).
func LimitsFor(t Tier) Limits {
	return tiers[Normalize(t)].limits
}

// FeaturesFor returns a copy of the features granted by t.
func FeaturesFor(t Tier) []Feature {
	fs := tiers[Normalize(t)].features
	out := make([]Feature, len(fs))
	copy(out, fs)
	return out
}

// Includes reports whether t grants f.
func Includes(t Tier, f Feature) bool {
	for _, g := range tiers[Normalize(t)].features {
		if g == f {
			return true
		}
	}
	return false
}

// Higher returns the greater of a and b.
func Higher(a, b Tier) Tier {
	if tiers[Normalize(b)].rank > tiers[Normalize(a)].rank {
		return Normalize(b)
	}
	return Normalize(a)
}

// Subscription is the persisted plan state of a tenant.
type Subscription struct {
	Plan          Tier
	PlanExpiresAt *time.Time
	TrialEndsAt   *time.Time
}

// Info is the computed plan view of a tenant.
type Info struct {
	Plan          Tier       `json:"plan"`
	EffectivePlan Tier       `json:"effective_plan"`
	IsExpired     bool       `json:"is_expired"`
	IsTrialing    bool       `json:"is_trialing"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
	TrialEndsAt   *time.Time `json:"trial_ends_at"`
	Limits        Limits     `json:"limits"`
	Features      []Feature  `json:"features"`
}

// Resolve computes the effective plan of s at now. An expired plan always
// resolves to free with no features, trial or not. A live trial upgrades
// the tenant to trialTier when that tier is higher.
func Resolve(s Subscription, trialTier Tier, now time.Time) Info {
	info := Info{
		Plan:          Normalize(s.Plan),
		PlanExpiresAt: s.PlanExpiresAt,
		TrialEndsAt:   s.TrialEndsAt,
	}
	info.IsExpired = s.PlanExpiresAt != nil && s.PlanExpiresAt.Before(now)
	info.IsTrialing = s.TrialEndsAt != nil && s.TrialEndsAt.After(now)

	switch {
	case info.IsExpired:
		info.EffectivePlan = TierFree
		info.Features = []Feature{}
	case info.IsTrialing && IsValid(trialTier):
		info.EffectivePlan = Higher(info.Plan, trialTier)
	default:
		info.EffectivePlan = info.Plan
	}
	info.Limits = LimitsFor(info.EffectivePlan)
	if info.Features == nil {
		info.Features = FeaturesFor(info.EffectivePlan)
	}
	return info
}

// HasFeature reports whether the resolved plan grants f.
func (i Info) HasFeature(f Feature) bool {
	if i.IsExpired {
		return false
	}
	for _, g := range i.Features {
		if g == f {
			return true
		}
	}
	return false
}

// Usage is the result of a limit check.
type Usage struct {
	Resource Resource `json:"resource"`
	Current  int      `json:"current"`
	Limit    int      `json:"limit"`
	Exceeded bool     `json:"exceeded"`
}

// Check reports whether current is at or above the cap for r.
// An unlimited cap is never exceeded.
func (i Info) Check(r Resource, current int) Usage {
	limit := i.Limits.Of(r)
	return Usage{
		Resource: r,
		Current:  current,
		Limit:    limit,
		Exceeded: limit != Unlimited && current >= limit,
	}
}
