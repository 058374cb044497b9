package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/linkshop/internal/domain/analytics"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/port/cache"
	"github.com/Strob0t/linkshop/internal/port/database"
)

const topSellersTTL = 5 * time.Minute

// AnalyticsService computes dashboard aggregates in the tenant's time zone.
type AnalyticsService struct {
	store   database.Store
	tenants tenantGetter
	cache   cache.Cache
	now     func() time.Time
}

// NewAnalyticsService creates an AnalyticsService. c may be nil.
func NewAnalyticsService(store database.Store, tenants tenantGetter, c cache.Cache) *AnalyticsService {
	return &AnalyticsService{store: store, tenants: tenants, cache: c, now: time.Now}
}

// Summary returns order counts and revenue for today, the last 7 days and
// the month to date, from a single bounded fetch.
func (s *AnalyticsService) Summary(ctx context.Context, tenantID string) (analytics.Summary, error) {
	loc, err := s.location(ctx, tenantID)
	if err != nil {
		return analytics.Summary{}, err
	}
	now := s.now()
	orders, err := s.since(ctx, tenantID, analytics.SummaryWindowStart(loc, now))
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(orders, loc, now), nil
}

// Daily returns one zero-filled bucket per day for the last days days.
func (s *AnalyticsService) Daily(ctx context.Context, tenantID string, days int) ([]analytics.Bucket, error) {
	switch {
	case days <= 0:
		days = analytics.DefaultDays
	case days > analytics.MaxDays:
		days = analytics.MaxDays
	}
	loc, err := s.location(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	first := analytics.DayStart(now, loc).AddDate(0, 0, -(days - 1))
	orders, err := s.since(ctx, tenantID, first)
	if err != nil {
		return nil, err
	}
	return analytics.DailyBuckets(orders, loc, now, days), nil
}

// TopSellers returns the best selling products of the trailing 30 days.
// Results are cached per tenant for five minutes.
func (s *AnalyticsService) TopSellers(ctx context.Context, tenantID string) ([]analytics.TopSeller, error) {
	key := cache.Key("top-sellers", tenantID)
	if s.cache != nil {
		if v, ok, err := cache.GetJSON[[]analytics.TopSeller](ctx, s.cache, key); err == nil && ok {
			return v, nil
		}
	}

	now := s.now()
	orders, err := s.since(ctx, tenantID, now.Add(-analytics.TopSellerWindow))
	if err != nil {
		return nil, err
	}
	top := analytics.TopSellers(orders, now)
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, top, topSellersTTL); err != nil {
			slog.WarnContext(ctx, "top sellers cache write failed", "error", err)
		}
	}
	return top, nil
}

func (s *AnalyticsService) location(ctx context.Context, tenantID string) (*time.Location, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	return t.Location(), nil
}

func (s *AnalyticsService) since(ctx context.Context, tenantID string, from time.Time) ([]order.Order, error) {
	orders, err := s.store.ListOrders(ctx, tenantID, order.ListFilter{Since: from})
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return orders, nil
}
