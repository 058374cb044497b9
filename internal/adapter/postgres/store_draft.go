package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/draft"
	"github.com/Strob0t/linkshop/internal/domain/order"
)

const draftColumns = `tenant_id, session_id, phone, name, items, created_at, updated_at`

func scanDraft(row scannable) (draft.Draft, error) {
	var d draft.Draft
	var itemsJSON []byte
	if err := row.Scan(&d.TenantID, &d.SessionID, &d.Phone, &d.Name, &itemsJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return d, err
	}
	if err := json.Unmarshal(itemsJSON, &d.Items); err != nil {
		return d, fmt.Errorf("decode draft items: %w", err)
	}
	return d, nil
}

func collectDrafts(rows pgx.Rows) ([]draft.Draft, error) {
	defer rows.Close()
	var drafts []draft.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// --- Checkout drafts ---

// UpsertDraft stores d keyed on (tenant, session). Repeating the call with
// the same session replaces the contents and keeps the original creation time.
func (s *Store) UpsertDraft(ctx context.Context, d *draft.Draft) error {
	items, err := marshalJSONB(d.Items)
	if err != nil {
		return fmt.Errorf("marshal draft items: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO checkout_drafts (tenant_id, session_id, phone, name, items, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, session_id) DO UPDATE
		   SET phone = EXCLUDED.phone, name = EXCLUDED.name, items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		d.TenantID, d.SessionID, d.Phone, d.Name, items, defaultNow(d.CreatedAt), defaultNow(d.UpdatedAt),
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (s *Store) ListDrafts(ctx context.Context, tenantID string) ([]draft.Draft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+draftColumns+` FROM checkout_drafts WHERE tenant_id = $1 ORDER BY updated_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return collectDrafts(rows)
}

// ListStaleDrafts returns drafts of every tenant idle since before, oldest first.
func (s *Store) ListStaleDrafts(ctx context.Context, before time.Time, limit int) ([]draft.Draft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+draftColumns+` FROM checkout_drafts
		 WHERE updated_at < $1 ORDER BY updated_at ASC LIMIT NULLIF($2::int, 0)`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	return collectDrafts(rows)
}

// AbandonDraft records o and removes d atomically. A draft that was
// touched or removed since it was listed is left alone and reported as
// not found, so a customer resuming checkout never loses the cart.
func (s *Store) AbandonDraft(ctx context.Context, d *draft.Draft, o *order.Order) error {
	amounts, err := json.Marshal(o.Amounts)
	if err != nil {
		return fmt.Errorf("marshal amounts: %w", err)
	}
	items, err := marshalJSONB(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	contact, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	history, err := marshalJSONB(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM checkout_drafts WHERE tenant_id = $1 AND session_id = $2 AND updated_at = $3`,
			d.TenantID, d.SessionID, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("abandon draft %s: %w", d.SessionID, domain.ErrNotFound)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, tenant_id, order_number, status, payment_status, amounts, items, customer,
			   status_history, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, o.TenantID, o.OrderNumber, string(o.Status), string(o.PaymentStatus), amounts, items, contact,
			history, defaultNow(o.CreatedAt), defaultNow(o.UpdatedAt))
		if err != nil {
			return uniqueWrap(err, "insert abandoned order %s", o.OrderNumber)
		}
		return nil
	})
}

func (s *Store) DeleteDraft(ctx context.Context, tenantID, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM checkout_drafts WHERE tenant_id = $1 AND session_id = $2`, tenantID, sessionID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
