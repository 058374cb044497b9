package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/database"
)

// tenantGetter is the slice of TenantService the plan gate needs.
type tenantGetter interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
}

// PlanView is the admin plan page: the resolved plan plus current usage.
type PlanView struct {
	plan.Info
	Usage []plan.Usage `json:"usage"`
}

// PlanService resolves tenant subscriptions and enforces feature and
// quantity gates.
type PlanService struct {
	tenants   tenantGetter
	store     database.Store
	trialTier plan.Tier
	now       func() time.Time
}

// NewPlanService creates a PlanService. Trialing tenants get trialTier
// when it is higher than their own plan.
func NewPlanService(tenants tenantGetter, store database.Store, trialTier plan.Tier) *PlanService {
	return &PlanService{tenants: tenants, store: store, trialTier: trialTier, now: time.Now}
}

// GetPlan returns the effective plan of the tenant.
func (s *PlanService) GetPlan(ctx context.Context, tenantID string) (plan.Info, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return plan.Info{}, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	return plan.Resolve(t.Subscription(), s.trialTier, s.now()), nil
}

// HasFeature reports whether the tenant's effective plan grants f.
func (s *PlanService) HasFeature(ctx context.Context, tenantID string, f plan.Feature) (bool, error) {
	info, err := s.GetPlan(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return info.HasFeature(f), nil
}

// RequireFeature returns a forbidden error unless the tenant has f.
func (s *PlanService) RequireFeature(ctx context.Context, tenantID string, f plan.Feature) error {
	ok, err := s.HasFeature(ctx, tenantID, f)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbiddenf("feature %s is not included in your plan", f)
	}
	return nil
}

// CheckPlanLimit compares current usage of r with the cap of the effective plan.
func (s *PlanService) CheckPlanLimit(ctx context.Context, tenantID string, r plan.Resource) (plan.Usage, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return plan.Usage{}, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	now := s.now()
	info := plan.Resolve(t.Subscription(), s.trialTier, now)
	n, err := s.count(ctx, t, r, now)
	if err != nil {
		return plan.Usage{}, err
	}
	return info.Check(r, n), nil
}

// EnforceLimit returns a forbidden error when creating one more r would
// exceed the tenant's cap.
func (s *PlanService) EnforceLimit(ctx context.Context, tenantID string, r plan.Resource) error {
	u, err := s.CheckPlanLimit(ctx, tenantID, r)
	if err != nil {
		return err
	}
	if u.Exceeded {
		return domain.Forbiddenf("plan limit reached for %s (%d of %d)", r, u.Current, u.Limit)
	}
	return nil
}

// View returns the plan together with the usage of every capped resource.
// The counts run concurrently.
func (s *PlanService) View(ctx context.Context, tenantID string) (PlanView, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return PlanView{}, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	now := s.now()
	info := plan.Resolve(t.Subscription(), s.trialTier, now)

	resources := []plan.Resource{plan.ResourceSKUs, plan.ResourceOrders}
	usage := make([]plan.Usage, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range resources {
		g.Go(func() error {
			n, err := s.count(gctx, t, r, now)
			if err != nil {
				return err
			}
			usage[i] = info.Check(r, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PlanView{}, err
	}
	return PlanView{Info: info, Usage: usage}, nil
}

// count returns the current usage of r. Orders count from the first day of
// the month in the tenant's time zone.
func (s *PlanService) count(ctx context.Context, t *tenant.Tenant, r plan.Resource, now time.Time) (int, error) {
	switch r {
	case plan.ResourceSKUs:
		n, err := s.store.CountProducts(ctx, t.ID)
		if err != nil {
			return 0, fmt.Errorf("count products: %w", err)
		}
		return n, nil
	case plan.ResourceOrders:
		local := now.In(t.Location())
		since := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
		n, err := s.store.CountOrders(ctx, t.ID, order.ListFilter{Since: since})
		if err != nil {
			return 0, fmt.Errorf("count orders: %w", err)
		}
		return n, nil
	}
	return 0, domain.Validationf("unknown plan resource %q", r)
}
