package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/database/dbtest"
	"github.com/Strob0t/linkshop/internal/port/messagequeue"
)

func TestTenantService_Create(t *testing.T) {
	svc := NewTenantService(dbtest.New(), nil, time.Minute)
	ctx := context.Background()

	tn, err := svc.Create(ctx, tenant.CreateRequest{Slug: "Tea-House", Name: "Tea House"})
	require.NoError(t, err)
	assert.Equal(t, "tea-house", tn.Slug)
	assert.Equal(t, plan.TierFree, tn.Plan)

	_, err = svc.Create(ctx, tenant.CreateRequest{Slug: "x", Name: "X"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, tenant.CreateRequest{Slug: "tea-house", Name: "Again"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTenantService_ResolveIsCached(t *testing.T) {
	store := dbtest.New()
	c := newMemCache()
	svc := NewTenantService(store, c, time.Minute)
	ctx := context.Background()

	stored := store.AddTenant(tenant.Tenant{Slug: "tea", Name: "Tea", CustomDomain: "shop.tea.hk"})

	got, err := svc.ResolveSlug(ctx, "TEA")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)

	// The cached copy keeps serving after the row changes underneath.
	stored.Name = "Renamed"
	store.AddTenant(stored)
	again, err := svc.ResolveSlug(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, "Tea", again.Name)

	byDomain, err := svc.ResolveDomain(ctx, "Shop.Tea.HK")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, byDomain.ID)

	_, err = svc.ResolveSlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTenantService_InactiveIsNotFound(t *testing.T) {
	store := dbtest.New()
	svc := NewTenantService(store, nil, time.Minute)
	store.AddTenant(tenant.Tenant{Slug: "closed", Name: "Closed", Status: tenant.StatusInactive})

	_, err := svc.ResolveSlug(context.Background(), "closed")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Operators can still look it up.
	got, err := svc.GetBySlug(context.Background(), "closed")
	require.NoError(t, err)
	assert.False(t, got.IsActive())
}

func TestTenantService_SetPlanInvalidatesCache(t *testing.T) {
	store := dbtest.New()
	svc := NewTenantService(store, newMemCache(), time.Minute)
	ctx := context.Background()
	tn := store.AddTenant(tenant.Tenant{Slug: "tea", Name: "Tea", Plan: plan.TierFree})

	_, err := svc.Get(ctx, tn.ID)
	require.NoError(t, err)
	_, err = svc.ResolveSlug(ctx, "tea")
	require.NoError(t, err)

	updated, err := svc.SetPlan(ctx, tn.ID, tenant.PlanUpdate{Plan: plan.TierPro})
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, updated.Plan)

	byID, err := svc.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, byID.Plan)
	bySlug, err := svc.ResolveSlug(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, bySlug.Plan)

	_, err = svc.SetPlan(ctx, tn.ID, tenant.PlanUpdate{Plan: "gold"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SetPlan(ctx, "missing", tenant.PlanUpdate{Plan: plan.TierPro})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTenantService_PlanChangeReachesOtherProcess(t *testing.T) {
	store := dbtest.New()
	q := &loopbackQueue{}
	ctx := context.Background()
	tn := store.AddTenant(tenant.Tenant{Slug: "tea", Name: "Tea", Plan: plan.TierFree, CustomDomain: "shop.tea.hk"})

	// A running server with its own in-process cache.
	l1 := newMemCache()
	server := NewTenantService(store, l1, time.Hour)
	server.ShareInvalidations(q, l1)
	stop, err := server.ListenInvalidations(ctx)
	require.NoError(t, err)
	defer stop()

	for _, resolve := range []func() (*tenant.Tenant, error){
		func() (*tenant.Tenant, error) { return server.ResolveSlug(ctx, "tea") },
		func() (*tenant.Tenant, error) { return server.ResolveDomain(ctx, "shop.tea.hk") },
		func() (*tenant.Tenant, error) { return server.Get(ctx, tn.ID) },
	} {
		got, err := resolve()
		require.NoError(t, err)
		require.Equal(t, plan.TierFree, got.Plan)
	}

	// The operator CLI shares no cache with the server.
	cli := NewTenantService(store, nil, 0)
	cli.ShareInvalidations(q, nil)
	_, err = cli.SetPlan(ctx, tn.ID, tenant.PlanUpdate{Plan: plan.TierPro})
	require.NoError(t, err)
	assert.Equal(t, []string{messagequeue.SubjectTenantInvalidated}, q.published)

	bySlug, err := server.ResolveSlug(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, bySlug.Plan)
	byDomain, err := server.ResolveDomain(ctx, "shop.tea.hk")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, byDomain.Plan)
	byID, err := server.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, byID.Plan)
}

func TestTenantService_ListenInvalidationsNeedsQueueAndCache(t *testing.T) {
	svc := NewTenantService(dbtest.New(), newMemCache(), time.Minute)
	stop, err := svc.ListenInvalidations(context.Background())
	require.NoError(t, err)
	stop()

	svc.ShareInvalidations(&loopbackQueue{}, newMemCache())
	require.Error(t, svc.dropLocal(context.Background(), messagequeue.SubjectTenantInvalidated, []byte(`{`)))
}
