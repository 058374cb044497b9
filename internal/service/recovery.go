package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/draft"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/port/database"
)

// RecoveryService keeps checkout drafts and turns the stale ones into
// ABANDONED orders that shop owners can follow up on.
type RecoveryService struct {
	store   database.Store
	plans   *PlanService
	metrics *lsotel.Metrics
	node    *snowflake.Node
	cfg     config.Recovery
	now     func() time.Time
}

// NewRecoveryService creates a RecoveryService. metrics may be nil.
func NewRecoveryService(store database.Store, plans *PlanService, metrics *lsotel.Metrics, node *snowflake.Node, cfg config.Recovery) *RecoveryService {
	return &RecoveryService{store: store, plans: plans, metrics: metrics, node: node, cfg: cfg, now: time.Now}
}

// SaveDraft upserts the draft of one checkout session. Drafts of tenants
// without cart recovery are accepted but not stored.
func (s *RecoveryService) SaveDraft(ctx context.Context, tenantID, sessionID string, req draft.SaveRequest) (*draft.Draft, error) {
	if err := draft.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d := &draft.Draft{
		TenantID:  tenantID,
		SessionID: sessionID,
		Phone:     req.Phone,
		Name:      req.Name,
		Items:     req.Items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Items == nil {
		d.Items = []draft.Item{}
	}

	ok, err := s.plans.HasFeature(ctx, tenantID, plan.FeatureCartRecovery)
	if err != nil {
		return nil, err
	}
	if !ok {
		return d, nil
	}
	if err := s.store.UpsertDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// Discard removes the draft of a completed checkout.
func (s *RecoveryService) Discard(ctx context.Context, tenantID, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.store.DeleteDraft(ctx, tenantID, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "discard draft failed", "error", err)
	}
}

// List returns the live drafts of the tenant.
func (s *RecoveryService) List(ctx context.Context, tenantID string) ([]draft.Draft, error) {
	ds, err := s.store.ListDrafts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	if ds == nil {
		ds = []draft.Draft{}
	}
	return ds, nil
}

// Sweep processes one batch of drafts idle for longer than the configured
// period. Drafts with a phone and items become ABANDONED orders when their
// tenant has cart recovery; all others are dropped. It returns the number
// of orders recorded.
func (s *RecoveryService) Sweep(ctx context.Context) (recorded int, err error) {
	ctx, span := lsotel.StartSweepSpan(ctx)
	defer func() { lsotel.EndSpan(span, err) }()

	cutoff := s.now().Add(-s.cfg.IdleAfter)
	stale, err := s.store.ListStaleDrafts(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale drafts: %w", err)
	}

	features := make(map[string]bool)
	for i := range stale {
		d := &stale[i]
		enabled, seen := features[d.TenantID]
		if !seen {
			enabled, err = s.plans.HasFeature(ctx, d.TenantID, plan.FeatureCartRecovery)
			if err != nil {
				slog.WarnContext(ctx, "draft sweep plan lookup failed", "tenant_id", d.TenantID, "error", err)
				continue
			}
			features[d.TenantID] = enabled
		}
		if !enabled || !d.Recoverable(cutoff) {
			s.Discard(ctx, d.TenantID, d.SessionID)
			continue
		}
		if err := s.abandon(ctx, d); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Resumed or removed since it was listed.
				continue
			}
			slog.ErrorContext(ctx, "abandon draft failed", "tenant_id", d.TenantID, "error", err)
			continue
		}
		recorded++
	}
	return recorded, nil
}

func (s *RecoveryService) abandon(ctx context.Context, d *draft.Draft) error {
	ids := make([]string, len(d.Items))
	for i, it := range d.Items {
		ids[i] = it.ProductID
	}
	products, err := s.store.GetProductsByIDs(ctx, d.TenantID, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	prices := make(map[string]order.Item, len(products))
	for _, p := range products {
		prices[p.ID] = order.Item{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price}
	}

	items := make([]order.Item, 0, len(d.Items))
	subtotal := decimal.Zero
	for _, it := range d.Items {
		line, ok := prices[it.ProductID]
		if !ok {
			continue
		}
		line.Quantity = it.Quantity
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line.LineTotal)
		items = append(items, line)
	}

	now := s.now().UTC()
	o := &order.Order{
		ID:            uuid.NewString(),
		TenantID:      d.TenantID,
		OrderNumber:   NewOrderNumber(s.node),
		Status:        order.StatusAbandoned,
		PaymentStatus: order.PaymentPending,
		Amounts:       order.Amounts{Subtotal: subtotal, Discount: decimal.Zero, Shipping: decimal.Zero, Total: subtotal},
		Items:         items,
		Customer:      order.Contact{Name: d.Name, Phone: d.Phone},
		StatusHistory: []order.HistoryEntry{{
			Timestamp: now,
			ToStatus:  order.StatusAbandoned,
			Action:    order.ActionAbandon,
			By:        ActorSystem,
		}},
		CreatedAt: d.UpdatedAt,
		UpdatedAt: now,
	}
	if err := s.store.AbandonDraft(ctx, d, o); err != nil {
		return err
	}
	s.metrics.DraftAbandoned(ctx, d.TenantID)
	return nil
}

// Start runs Sweep every configured interval until ctx is cancelled.
func (s *RecoveryService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "draft sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.InfoContext(ctx, "abandoned drafts recorded", "count", n)
				}
			}
		}
	}()
}
