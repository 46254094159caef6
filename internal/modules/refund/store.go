// README: Refund persistence (pgx).
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"angierens/internal/modules/order"
	"angierens/internal/types"
)

// execer is the subset of pgxpool.Pool and pgx.Tx the write paths go
// through; refund rows commit inside the order's status transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, r *Refund) error {
	return insertOn(ctx, s.db, r)
}

// InsertTx is Insert inside a caller-held transaction.
func (s *Store) InsertTx(ctx context.Context, tx pgx.Tx, r *Refund) error {
	return insertOn(ctx, tx, r)
}

func insertOn(ctx context.Context, q execer, r *Refund) error {
	_, err := q.Exec(ctx, `
		INSERT INTO refunds (id, order_id, reason, destination, status, fee, total, staff_response, proof_ref, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.OrderID, r.Reason, r.Destination, r.Status,
		r.Fee.StringFixed(2), r.Total.StringFixed(2),
		r.StaffResponse, r.ProofRef, r.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// Resolve freezes the payout figures on the pending request. The status guard
// makes a second resolution a no-op signalled as a conflict.
func (s *Store) Resolve(ctx context.Context, orderID types.ID, to Status, fee, total decimal.Decimal, staffResponse, proofRef string) error {
	return resolveOn(ctx, s.db, orderID, to, fee, total, staffResponse, proofRef)
}

// ResolveTx is Resolve inside a caller-held transaction.
func (s *Store) ResolveTx(ctx context.Context, tx pgx.Tx, orderID types.ID, to Status, fee, total decimal.Decimal, staffResponse, proofRef string) error {
	return resolveOn(ctx, tx, orderID, to, fee, total, staffResponse, proofRef)
}

func resolveOn(ctx context.Context, q execer, orderID types.ID, to Status, fee, total decimal.Decimal, staffResponse, proofRef string) error {
	tag, err := q.Exec(ctx, `
		UPDATE refunds
		SET status = $1, fee = $2, total = $3, staff_response = $4, proof_ref = $5, resolved_at = NOW()
		WHERE order_id = $6 AND status = $7`,
		to, fee.StringFixed(2), total.StringFixed(2), staffResponse, proofRef, orderID, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("resolve refund: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return order.ErrConflict
	}
	return nil
}

func (s *Store) GetByOrder(ctx context.Context, orderID types.ID) (*Refund, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, reason, destination, status, fee::text, total::text, staff_response, proof_ref, requested_at, resolved_at
		FROM refunds
		WHERE order_id = $1
		ORDER BY requested_at DESC
		LIMIT 1`, orderID)
	r, err := scanRefund(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	return r, err
}

// List returns refunds, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status) ([]Refund, error) {
	query := `
		SELECT id, order_id, reason, destination, status, fee::text, total::text, staff_response, proof_ref, requested_at, resolved_at
		FROM refunds`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var out []Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRefund(row pgx.Row) (*Refund, error) {
	var (
		r          Refund
		fee, total string
		resolvedAt *time.Time
	)
	if err := row.Scan(&r.ID, &r.OrderID, &r.Reason, &r.Destination, &r.Status,
		&fee, &total, &r.StaffResponse, &r.ProofRef, &r.RequestedAt, &resolvedAt); err != nil {
		return nil, err
	}
	var err error
	if r.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	if r.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	r.ResolvedAt = resolvedAt
	return &r, nil
}
