package plan

import (
	"testing"
	"time"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		sub           Subscription
		wantEffective Tier
		wantExpired   bool
		wantTrialing  bool
	}{
		{name: "empty plan defaults to free", sub: Subscription{}, wantEffective: TierFree},
		{name: "unknown plan defaults to free", sub: Subscription{Plan: "gold"}, wantEffective: TierFree},
		{name: "active starter", sub: Subscription{Plan: TierStarter, PlanExpiresAt: ptr(now.Add(time.Hour))}, wantEffective: TierStarter},
		{name: "expired pro", sub: Subscription{Plan: TierPro, PlanExpiresAt: ptr(now.Add(-time.Second))}, wantEffective: TierFree, wantExpired: true},
		{name: "trialing free", sub: Subscription{Plan: TierFree, TrialEndsAt: ptr(now.Add(24 * time.Hour))}, wantEffective: TierPro, wantTrialing: true},
		{name: "trial ended", sub: Subscription{Plan: TierStarter, TrialEndsAt: ptr(now.Add(-time.Hour))}, wantEffective: TierStarter},
		{
			name:          "expired wins over trial",
			sub:           Subscription{Plan: TierStarter, PlanExpiresAt: ptr(now.Add(-time.Hour)), TrialEndsAt: ptr(now.Add(time.Hour))},
			wantEffective: TierFree, wantExpired: true, wantTrialing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Resolve(tt.sub, TierPro, now)
			if info.EffectivePlan != tt.wantEffective {
				t.Errorf("effective = %s, want %s", info.EffectivePlan, tt.wantEffective)
			}
			if info.IsExpired != tt.wantExpired {
				t.Errorf("isExpired = %v, want %v", info.IsExpired, tt.wantExpired)
			}
			if info.IsTrialing != tt.wantTrialing {
				t.Errorf("isTrialing = %v, want %v", info.IsTrialing, tt.wantTrialing)
			}
			if info.Limits != LimitsFor(tt.wantEffective) {
				t.Errorf("limits = %+v, want %+v", info.Limits, LimitsFor(tt.wantEffective))
			}
		})
	}
}

func TestHasFeature_FalseWhenExpired(t *testing.T) {
	features := []Feature{FeatureAnalytics, FeatureCRM, FeatureCartRecovery, FeatureCoupon}
	for _, tier := range []Tier{TierFree, TierStarter, TierPro} {
		info := Resolve(Subscription{Plan: tier, PlanExpiresAt: ptr(now.Add(-time.Minute)), TrialEndsAt: ptr(now.Add(time.Hour))}, TierPro, now)
		for _, f := range features {
			if info.HasFeature(f) {
				t.Errorf("expired %s plan grants %s", tier, f)
			}
		}
	}
}

func TestHasFeature_ByTier(t *testing.T) {
	tests := []struct {
		tier Tier
		want map[Feature]bool
	}{
		{TierFree, map[Feature]bool{}},
		{TierStarter, map[Feature]bool{FeatureAnalytics: true, FeatureCoupon: true}},
		{TierPro, map[Feature]bool{FeatureAnalytics: true, FeatureCRM: true, FeatureCartRecovery: true, FeatureCoupon: true}},
	}
	for _, tt := range tests {
		info := Resolve(Subscription{Plan: tt.tier}, "", now)
		for _, f := range []Feature{FeatureAnalytics, FeatureCRM, FeatureCartRecovery, FeatureCoupon} {
			if got := info.HasFeature(f); got != tt.want[f] {
				t.Errorf("%s.HasFeature(%s) = %v, want %v", tt.tier, f, got, tt.want[f])
			}
		}
	}
}

func TestCheck(t *testing.T) {
	free := Resolve(Subscription{Plan: TierFree}, "", now)
	if u := free.Check(ResourceSKUs, 9); u.Exceeded || u.Limit != 10 {
		t.Errorf("9/10 skus: %+v", u)
	}
	if u := free.Check(ResourceSKUs, 10); !u.Exceeded {
		t.Errorf("10/10 skus should be at cap: %+v", u)
	}
	pro := Resolve(Subscription{Plan: TierPro}, "", now)
	if u := pro.Check(ResourceOrders, 1_000_000); u.Exceeded || u.Limit != Unlimited {
		t.Errorf("pro orders should be unlimited: %+v", u)
	}
}

func TestHigher(t *testing.T) {
	if Higher(TierStarter, TierFree) != TierStarter || Higher(TierFree, TierPro) != TierPro || Higher("x", "y") != TierFree {
		t.Fatal("Higher ordering broken")
	}
}
