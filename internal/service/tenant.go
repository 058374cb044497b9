package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/port/cache"
	"github.com/Strob0t/linkshop/internal/port/database"
	"github.com/Strob0t/linkshop/internal/port/messagequeue"
)

// TenantService manages tenants and resolves them for incoming requests.
// Lookups by id, slug and custom domain go through the cache; concurrent
// misses for the same key share one database read.
type TenantService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group

	// queue and local spread invalidations to the in-process caches of
	// every instance. Both are optional.
	queue messagequeue.Queue
	local cache.Cache
}

// NewTenantService creates a TenantService. c may be nil to disable caching.
func NewTenantService(store database.Store, c cache.Cache, ttl time.Duration) *TenantService {
	return &TenantService{store: store, cache: c, ttl: ttl}
}

// ShareInvalidations publishes every tenant invalidation on queue. local is
// the in-process cache that ListenInvalidations clears when another process
// changes a tenant; it is nil for processes without one, like the CLI.
func (s *TenantService) ShareInvalidations(queue messagequeue.Queue, local cache.Cache) {
	s.queue = queue
	s.local = local
}

// ListenInvalidations drops the keys named by tenants.invalidated messages
// from the local cache. It is a no-op without a queue or local cache. The
// returned func stops the subscription.
func (s *TenantService) ListenInvalidations(ctx context.Context) (func(), error) {
	if s.queue == nil || s.local == nil {
		return func() {}, nil
	}
	stop, err := s.queue.Subscribe(ctx, messagequeue.SubjectTenantInvalidated, s.dropLocal)
	if err != nil {
		return nil, fmt.Errorf("subscribe tenant invalidations: %w", err)
	}
	return stop, nil
}

func (s *TenantService) dropLocal(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TenantInvalidatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode tenant invalidation: %w", err)
	}
	for _, k := range p.Keys {
		if err := s.local.Delete(ctx, k); err != nil {
			return fmt.Errorf("drop %s: %w", k, err)
		}
	}
	slog.DebugContext(ctx, "tenant cache entries dropped", "tenant_id", p.TenantID, "keys", len(p.Keys))
	return nil
}

// Create validates and creates a new tenant.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTenant(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create tenant %s: %w", req.Slug, err)
	}
	slog.InfoContext(ctx, "tenant created", "tenant_id", t.ID, "slug", t.Slug, "plan", t.Plan)
	return t, nil
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Get returns a tenant by ID, active or not.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.lookup(ctx, idKey(id), func(ctx context.Context) (*tenant.Tenant, error) {
		return s.store.GetTenant(ctx, id)
	})
}

// GetBySlug returns a tenant by slug, active or not.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	return s.lookup(ctx, slugKey(slug), func(ctx context.Context) (*tenant.Tenant, error) {
		return s.store.GetTenantBySlug(ctx, slug)
	})
}

// ResolveSlug returns the active tenant with the given slug. Unknown and
// inactive tenants are both reported as domain.ErrNotFound.
func (s *TenantService) ResolveSlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return activeOnly(t)
}

// ResolveDomain returns the active tenant owning the custom domain host.
func (s *TenantService) ResolveDomain(ctx context.Context, host string) (*tenant.Tenant, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	t, err := s.lookup(ctx, domainKey(host), func(ctx context.Context) (*tenant.Tenant, error) {
		return s.store.GetTenantByDomain(ctx, host)
	})
	if err != nil {
		return nil, err
	}
	return activeOnly(t)
}

// SetPlan changes the subscription of a tenant and drops its cached copies.
func (s *TenantService) SetPlan(ctx context.Context, id string, u tenant.PlanUpdate) (*tenant.Tenant, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", id, err)
	}
	if err := s.store.UpdateTenantPlan(ctx, id, u.Subscription()); err != nil {
		return nil, fmt.Errorf("update plan of tenant %s: %w", id, err)
	}
	s.invalidate(ctx, cur)

	cur.Plan = u.Plan
	cur.PlanExpiresAt = u.PlanExpiresAt
	cur.TrialEndsAt = u.TrialEndsAt
	slog.InfoContext(ctx, "tenant plan changed", "tenant_id", id, "plan", u.Plan)
	return cur, nil
}

func (s *TenantService) lookup(ctx context.Context, key string, load func(context.Context) (*tenant.Tenant, error)) (*tenant.Tenant, error) {
	if s.cache != nil {
		t, ok, err := cache.GetJSON[tenant.Tenant](ctx, s.cache, key)
		if err != nil {
			slog.WarnContext(ctx, "tenant cache read failed", "key", key, "error", err)
		} else if ok {
			return &t, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		t, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := cache.SetJSON(ctx, s.cache, key, t, s.ttl); err != nil {
				slog.WarnContext(ctx, "tenant cache write failed", "key", key, "error", err)
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a flight must not share the pointer.
	t := *v.(*tenant.Tenant)
	return &t, nil
}

func (s *TenantService) invalidate(ctx context.Context, t *tenant.Tenant) {
	keys := []string{idKey(t.ID), slugKey(t.Slug)}
	if t.CustomDomain != "" {
		keys = append(keys, domainKey(t.CustomDomain))
	}
	if s.cache != nil {
		for _, k := range keys {
			if err := s.cache.Delete(ctx, k); err != nil {
				slog.WarnContext(ctx, "tenant cache delete failed", "key", k, "error", err)
			}
		}
	}
	if s.queue == nil {
		return
	}
	// Other instances keep serving their in-process copy until this arrives.
	data, err := json.Marshal(messagequeue.TenantInvalidatedPayload{TenantID: t.ID, Keys: keys})
	if err == nil {
		err = s.queue.Publish(ctx, messagequeue.SubjectTenantInvalidated, data)
	}
	if err != nil {
		slog.WarnContext(ctx, "tenant invalidation publish failed", "tenant_id", t.ID, "error", err)
	}
}

func activeOnly(t *tenant.Tenant) (*tenant.Tenant, error) {
	if !t.IsActive() {
		return nil, fmt.Errorf("tenant %s is inactive: %w", t.Slug, domain.ErrNotFound)
	}
	return t, nil
}

func idKey(id string) string       { return cache.Key("tenant", "id", id) }
func slugKey(slug string) string   { return cache.Key("tenant", "slug", slug) }
func domainKey(host string) string { return cache.Key("tenant", "domain", host) }
