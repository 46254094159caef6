// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"angierens/internal/types"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the store writes through,
// so single writes and transactional writes share the same SQL.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Begin opens a transaction for callers that must commit a status change
// together with their own rows.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.db.BeginTx(ctx, pgx.TxOptions{})
}

// Create persists the order aggregate in one transaction and fills in the
// assigned display number.
func (s *Store) Create(ctx context.Context, o *Order, items []Item, p *Payment, d *Delivery) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, customer_id, customer_name, status, status_version,
			fulfillment, special_instructions, total_price,
			created_at, status_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING order_no`,
		string(o.ID),
		string(o.CustomerID),
		o.CustomerName,
		string(o.Status),
		o.StatusVersion,
		string(o.Fulfillment),
		o.SpecialInstructions,
		o.TotalPrice.StringFixed(2),
		o.CreatedAt,
	).Scan(&o.OrderNo)
	if err != nil {
		return err
	}

	for i := range items {
		it := &items[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, name, quantity, unit_price, subtotal, completed)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
			string(it.ID), string(o.ID), it.Name, it.Quantity,
			it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2),
		); err != nil {
			return err
		}
		for _, a := range it.AddOns {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_item_addons (id, item_id, name, quantity, subtotal, completed)
				VALUES ($1, $2, $3, $4, $5, FALSE)`,
				string(a.ID), string(it.ID), a.Name, a.Quantity, a.Subtotal.StringFixed(2),
			); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (order_id, method, amount_paid, paid, paid_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(o.ID), string(p.Method), p.AmountPaid.StringFixed(2), p.Paid, p.PaidAt,
	); err != nil {
		return err
	}

	if d != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO deliveries (order_id, fee, address, dest_lat, dest_lng, rider_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(o.ID), d.Fee.StringFixed(2), d.Address,
			d.Destination.Lat, d.Destination.Lng, riderPtr(d.RiderID), d.Status,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_no, customer_id, customer_name, status, status_version,
		       fulfillment, special_instructions, total_price::text,
		       created_at, status_updated_at, completed_at
		FROM orders
		WHERE id = $1`, string(id),
	)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// UpdateStatus commits a transition with an optimistic check on the current
// status and version. It returns the commit timestamp, or ok=false when a
// concurrent writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (time.Time, bool, error) {
	return updateStatusOn(ctx, s.db, id, from, to, version)
}

// UpdateStatusTx is UpdateStatus inside a caller-held transaction.
func (s *Store) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id types.ID, from, to Status, version int) (time.Time, bool, error) {
	return updateStatusOn(ctx, tx, id, from, to, version)
}

func updateStatusOn(ctx context.Context, q querier, id types.ID, from, to Status, version int) (time.Time, bool, error) {
	var stamped time.Time
	err := q.QueryRow(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    status_updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'Completed' THEN NOW() ELSE completed_at END
		WHERE id = $2 AND status = $3 AND status_version = $4
		RETURNING status_updated_at`,
		string(to), string(id), string(from), version,
	).Scan(&stamped)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return stamped, true, nil
}

// SetItemCompletion toggles an item's done flag. The WHERE clause re-checks
// the owning order's status at commit time so a toggle submitted while the
// order leaves Cooking is rejected, not applied.
func (s *Store) SetItemCompletion(ctx context.Context, orderID, itemID types.ID, completed bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE order_items
		SET completed = $1
		WHERE id = $2 AND order_id = $3
		  AND EXISTS (SELECT 1 FROM orders WHERE id = $3 AND status = 'Cooking')`,
		completed, string(itemID), string(orderID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.explainGateMiss(ctx, orderID, `SELECT 1 FROM order_items WHERE id = $1 AND order_id = $2`, itemID)
}

// SetAddOnCompletion is the add-on counterpart of SetItemCompletion.
func (s *Store) SetAddOnCompletion(ctx context.Context, orderID, addOnID types.ID, completed bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE order_item_addons a
		SET completed = $1
		FROM order_items i
		WHERE a.id = $2 AND a.item_id = i.id AND i.order_id = $3
		  AND EXISTS (SELECT 1 FROM orders WHERE id = $3 AND status = 'Cooking')`,
		completed, string(addOnID), string(orderID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.explainGateMiss(ctx, orderID, `
		SELECT 1 FROM order_item_addons a
		JOIN order_items i ON i.id = a.item_id
		WHERE a.id = $1 AND i.order_id = $2`, addOnID)
}

// explainGateMiss distinguishes a missing record from a gate violation after
// a zero-row conditional update.
func (s *Store) explainGateMiss(ctx context.Context, orderID types.ID, existsQuery string, recordID types.ID) error {
	var one int
	err := s.db.QueryRow(ctx, existsQuery, string(recordID), string(orderID)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}

// AssignRider sets the delivery's rider while the order is still at or past
// the dispatch point. Orders without a delivery block have no rider to assign.
func (s *Store) AssignRider(ctx context.Context, orderID, riderID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE deliveries d
		SET rider_id = $1
		FROM orders o
		WHERE d.order_id = $2 AND o.id = $2
		  AND o.status IN ('Ready', 'On Delivery')`,
		string(riderID), string(orderID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var one int
	err = s.db.QueryRow(ctx, `SELECT 1 FROM deliveries WHERE order_id = $1`, string(orderID)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}

func (s *Store) AppendEvent(ctx context.Context, e *StatusEvent) error {
	return appendEventOn(ctx, s.db, e)
}

// AppendEventTx is AppendEvent inside a caller-held transaction.
func (s *Store) AppendEventTx(ctx context.Context, tx pgx.Tx, e *StatusEvent) error {
	return appendEventOn(ctx, tx, e)
}

func appendEventOn(ctx context.Context, q querier, e *StatusEvent) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_status_events (order_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.OrderID), string(e.From), string(e.To), string(e.Actor), e.CreatedAt,
	)
	return err
}

// Events returns the committed status history of an order, oldest first.
func (s *Store) Events(ctx context.Context, orderID types.ID) ([]StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetComposite reads the full nested projection one actor view renders.
func (s *Store) GetComposite(ctx context.Context, id types.ID) (*Composite, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c := &Composite{Order: *o}

	if c.Items, err = s.itemsFor(ctx, id); err != nil {
		return nil, err
	}

	var paidAt *time.Time
	var amount string
	p := Payment{OrderID: id}
	err = s.db.QueryRow(ctx, `
		SELECT method, amount_paid::text, paid, paid_at
		FROM payments WHERE order_id = $1`, string(id),
	).Scan(&p.Method, &amount, &p.Paid, &paidAt)
	if err == nil {
		p.AmountPaid, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		p.PaidAt = paidAt
		c.Payment = &p
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	d := Delivery{OrderID: id}
	var fee string
	var riderID *string
	err = s.db.QueryRow(ctx, `
		SELECT fee::text, address, dest_lat, dest_lng, rider_id, status
		FROM deliveries WHERE order_id = $1`, string(id),
	).Scan(&fee, &d.Address, &d.Destination.Lat, &d.Destination.Lng, &riderID, &d.Status)
	if err == nil {
		d.Fee, err = decimal.NewFromString(fee)
		if err != nil {
			return nil, err
		}
		if riderID != nil {
			rid := types.ID(*riderID)
			d.RiderID = &rid
		}
		c.Delivery = &d
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var r RefundInfo
	var rfee, rtotal string
	err = s.db.QueryRow(ctx, `
		SELECT id, reason, destination, status, fee::text, total::text,
		       staff_response, proof_ref, requested_at
		FROM refunds WHERE order_id = $1
		ORDER BY requested_at DESC LIMIT 1`, string(id),
	).Scan(&r.ID, &r.Reason, &r.Destination, &r.Status, &rfee, &rtotal,
		&r.StaffResponse, &r.ProofRef, &r.RequestedAt)
	if err == nil {
		if r.Fee, err = decimal.NewFromString(rfee); err != nil {
			return nil, err
		}
		if r.Total, err = decimal.NewFromString(rtotal); err != nil {
			return nil, err
		}
		c.Refund = &r
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return c, nil
}

// ListByStatus returns light order rows for board and dashboard views.
func (s *Store) ListByStatus(ctx context.Context, statuses []Status) ([]Order, error) {
	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, order_no, customer_id, customer_name, status, status_version,
		       fulfillment, special_instructions, total_price::text,
		       created_at, status_updated_at, completed_at
		FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at`, set,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListWithItems returns board rows with their item lines attached, batching
// the item and add-on reads instead of one round-trip per order.
func (s *Store) ListWithItems(ctx context.Context, statuses []Status) ([]Composite, error) {
	orders, err := s.ListByStatus(ctx, statuses)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = string(orders[i].ID)
	}
	byOrder, err := s.itemsForOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Composite, len(orders))
	for i, o := range orders {
		out[i] = Composite{Order: o, Items: byOrder[o.ID]}
	}
	return out, nil
}

func (s *Store) itemsFor(ctx context.Context, orderID types.ID) ([]Item, error) {
	byOrder, err := s.itemsForOrders(ctx, []string{string(orderID)})
	if err != nil {
		return nil, err
	}
	return byOrder[orderID], nil
}

func (s *Store) itemsForOrders(ctx context.Context, orderIDs []string) (map[types.ID][]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, name, quantity, unit_price::text, subtotal::text, completed
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, orderIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	index := map[types.ID]int{}
	for rows.Next() {
		var it Item
		var unit, sub string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Quantity, &unit, &sub, &it.Completed); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if it.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, err
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.Query(ctx, `
		SELECT a.id, a.item_id, a.name, a.quantity, a.subtotal::text, a.completed
		FROM order_item_addons a
		JOIN order_items i ON i.id = a.item_id
		WHERE i.order_id = ANY($1)
		ORDER BY a.id`, orderIDs,
	)
	if err != nil {
		return nil, err
	}
	defer arows.Close()

	for arows.Next() {
		var a AddOn
		var sub string
		if err := arows.Scan(&a.ID, &a.ItemID, &a.Name, &a.Quantity, &sub, &a.Completed); err != nil {
			return nil, err
		}
		if a.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, err
		}
		i, ok := index[a.ItemID]
		if !ok {
			return nil, fmt.Errorf("addon %s references unknown item %s", a.ID, a.ItemID)
		}
		items[i].AddOns = append(items[i].AddOns, a)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}

	byOrder := make(map[types.ID][]Item, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var total string
	var completedAt *time.Time
	err := row.Scan(
		&o.ID, &o.OrderNo, &o.CustomerID, &o.CustomerName, &o.Status, &o.StatusVersion,
		&o.Fulfillment, &o.SpecialInstructions, &total,
		&o.CreatedAt, &o.StatusUpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	o.CompletedAt = completedAt
	return &o, nil
}

func riderPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
