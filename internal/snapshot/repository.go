package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a session has no archived cart.
var ErrNotFound = errors.New("snapshot not found")

// DB is the subset of pgx used by the repository. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists archived carts.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Latest(ctx context.Context, sessionID string) (Record, error)
}

// Older tasks never overwrite a newer archived state.
const upsertSnapshotSQL = `INSERT INTO cart_snapshots (
	session_id, payload, total_items, deal_subtotal, non_deal_subtotal, voucher_discount, total, archived_at
) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8)
ON CONFLICT (session_id) DO UPDATE SET
	payload = EXCLUDED.payload,
	total_items = EXCLUDED.total_items,
	deal_subtotal = EXCLUDED.deal_subtotal,
	non_deal_subtotal = EXCLUDED.non_deal_subtotal,
	voucher_discount = EXCLUDED.voucher_discount,
	total = EXCLUDED.total,
	archived_at = EXCLUDED.archived_at
WHERE cart_snapshots.archived_at < EXCLUDED.archived_at`

const latestSnapshotSQL = `SELECT session_id, payload, total_items, deal_subtotal::text, non_deal_subtotal::text,
	voucher_discount::text, total::text, archived_at
FROM cart_snapshots
WHERE session_id = $1`

// Repository stores archived carts in Postgres.
type Repository struct {
	DB DB
}

// Save upserts rec.
func (r Repository) Save(ctx context.Context, rec Record) error {
	if r.DB == nil {
		return errors.New("snapshot repository not configured")
	}
	payload, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.DB.Exec(ctx, upsertSnapshotSQL,
		rec.SessionID,
		payload,
		rec.TotalItems,
		rec.DealSubtotal,
		rec.NonDealSubtotal,
		rec.VoucherDiscount,
		rec.Total,
		rec.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.SessionID, err)
	}
	return nil
}

// Latest loads the most recent archived cart of sessionID.
func (r Repository) Latest(ctx context.Context, sessionID string) (Record, error) {
	if r.DB == nil {
		return Record{}, errors.New("snapshot repository not configured")
	}
	var (
		rec     Record
		payload []byte
	)
	err := r.DB.QueryRow(ctx, latestSnapshotSQL, sessionID).Scan(
		&rec.SessionID,
		&payload,
		&rec.TotalItems,
		&rec.DealSubtotal,
		&rec.NonDealSubtotal,
		&rec.VoucherDiscount,
		&rec.Total,
		&rec.ArchivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(payload, &rec.Snapshot); err != nil {
		return Record{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return rec, nil
}
