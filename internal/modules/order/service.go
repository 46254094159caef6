// README: Order service implements the lifecycle state machine and persistence.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"angierens/internal/bus"
	"angierens/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("mutation outside its legal state window")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
)

const (
	// TableOrders and TableOrderItems are the change-bus table names actor
	// views subscribe to.
	TableOrders     = "order"
	TableOrderItems = "order_item"
)

type Service struct {
	store *Store
	bus   bus.Bus
}

func NewService(store *Store, b bus.Bus) *Service {
	return &Service{store: store, bus: b}
}

type AddOnInput struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type ItemInput struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	AddOns    []AddOnInput
}

type PaymentInput struct {
	Method     PaymentMethod
	AmountPaid decimal.Decimal
	Paid       bool
}

type DeliveryInput struct {
	Fee         decimal.Decimal
	Address     string
	Destination types.Point
}

type CreateCommand struct {
	CustomerID          types.ID
	CustomerName        string
	Fulfillment         Fulfillment
	SpecialInstructions string
	Items               []ItemInput
	Payment             PaymentInput
	Delivery            *DeliveryInput
}

type TransitionCommand struct {
	OrderID types.ID
	To      Status
	Actor   Role
}

type CompletionCommand struct {
	OrderID   types.ID
	RecordID  types.ID
	Completed bool
}

// Create places a new order in Pending. The stored total is derived from the
// submitted lines so it cannot disagree with its constituent sums.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.CustomerID == "" || len(cmd.Items) == 0 {
		return "", ErrValidation
	}
	switch cmd.Fulfillment {
	case FulfillmentDelivery:
		if cmd.Delivery == nil {
			return "", ErrValidation
		}
	case FulfillmentPickup:
		if cmd.Delivery != nil {
			return "", ErrValidation
		}
	default:
		return "", ErrValidation
	}
	switch cmd.Payment.Method {
	case MethodCash, MethodGCash, MethodGCashHalf:
	default:
		return "", ErrValidation
	}

	now := time.Now()
	id := types.ID(uuid.NewString())
	total := decimal.Zero

	items := make([]Item, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		if in.Quantity <= 0 || in.UnitPrice.IsNegative() {
			return "", ErrValidation
		}
		it := Item{
			ID:        types.ID(uuid.NewString()),
			OrderID:   id,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Subtotal:  in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		}
		total = total.Add(it.Subtotal)
		for _, ain := range in.AddOns {
			if ain.Quantity <= 0 || ain.UnitPrice.IsNegative() {
				return "", ErrValidation
			}
			a := AddOn{
				ID:       types.ID(uuid.NewString()),
				ItemID:   it.ID,
				Name:     ain.Name,
				Quantity: ain.Quantity,
				Subtotal: ain.UnitPrice.Mul(decimal.NewFromInt(int64(ain.Quantity))),
			}
			total = total.Add(a.Subtotal)
			it.AddOns = append(it.AddOns, a)
		}
		items = append(items, it)
	}

	var d *Delivery
	if cmd.Delivery != nil {
		if cmd.Delivery.Fee.IsNegative() {
			return "", ErrValidation
		}
		total = total.Add(cmd.Delivery.Fee)
		d = &Delivery{
			OrderID:     id,
			Fee:         cmd.Delivery.Fee,
			Address:     cmd.Delivery.Address,
			Destination: cmd.Delivery.Destination,
			Status:      "Pending",
		}
	}

	p := &Payment{
		OrderID:    id,
		Method:     cmd.Payment.Method,
		AmountPaid: cmd.Payment.AmountPaid,
		Paid:       cmd.Payment.Paid,
	}
	if p.Paid {
		paidAt := now
		p.PaidAt = &paidAt
	}

	o := &Order{
		ID:                  id,
		CustomerID:          cmd.CustomerID,
		CustomerName:        cmd.CustomerName,
		Status:              StatusPending,
		Fulfillment:         cmd.Fulfillment,
		SpecialInstructions: cmd.SpecialInstructions,
		TotalPrice:          total,
		CreatedAt:           now,
		StatusUpdatedAt:     now,
	}
	if err := s.store.Create(ctx, o, items, p, d); err != nil {
		return "", err
	}

	_ = s.store.AppendEvent(ctx, &StatusEvent{
		OrderID:   id,
		From:      StatusNone,
		To:        StatusPending,
		Actor:     RoleCustomer,
		CreatedAt: now,
	})
	s.publish(ctx, bus.OpInsert, TableOrders, id, now, statusPayload{Status: StatusPending, StatusUpdatedAt: now})
	return id, nil
}

// Transition validates the requested move against the transition table and
// commits it optimistically; a concurrent writer surfaces as ErrConflict.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) error {
	return s.TransitionWithin(ctx, cmd, nil)
}

// TransitionWithin commits a transition and the caller's extra writes in one
// transaction. If fn fails, the status change rolls back with it; workflows
// that must pair a status move with their own rows (refunds) go through here
// so a dependency failure cannot leave the order half-moved.
func (s *Service) TransitionWithin(ctx context.Context, cmd TransitionCommand, fn func(ctx context.Context, tx pgx.Tx) error) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, cmd.To, cmd.Actor) {
		return ErrInvalidTransition
	}
	if !fulfillmentAllows(cmd.To, o.Fulfillment) {
		return ErrInvalidTransition
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stamped, ok, err := s.store.UpdateStatusTx(ctx, tx, o.ID, o.Status, cmd.To, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if fn != nil {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}
	if err := s.store.AppendEventTx(ctx, tx, &StatusEvent{
		OrderID:   o.ID,
		From:      o.Status,
		To:        cmd.To,
		Actor:     cmd.Actor,
		CreatedAt: stamped,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publish(ctx, bus.OpUpdate, TableOrders, o.ID, stamped, statusPayload{Status: cmd.To, StatusUpdatedAt: stamped})
	return nil
}

// Cancel is the customer's direct cancellation; the table limits it to
// Pending orders, before any money or kitchen time is committed.
func (s *Service) Cancel(ctx context.Context, orderID types.ID) error {
	return s.Transition(ctx, TransitionCommand{OrderID: orderID, To: StatusCancelled, Actor: RoleCustomer})
}

// ConfirmReceipt is the customer's self-confirmed pickup or delivery receipt.
func (s *Service) ConfirmReceipt(ctx context.Context, orderID types.ID) error {
	return s.Transition(ctx, TransitionCommand{OrderID: orderID, To: StatusCompleted, Actor: RoleCustomer})
}

// AssignRider puts a rider on the delivery. The store-side gate limits it to
// orders at or past dispatch, and only delivery orders carry a rider.
func (s *Service) AssignRider(ctx context.Context, orderID, riderID types.ID) error {
	if riderID == "" {
		return ErrValidation
	}
	if err := s.store.AssignRider(ctx, orderID, riderID); err != nil {
		return err
	}
	s.publish(ctx, bus.OpUpdate, TableOrders, orderID, time.Now(), riderPayload{RiderID: riderID})
	return nil
}

// SetItemCompletion toggles a per-item done flag. The legality check runs
// inside the store's conditional write, against the freshest persisted
// status, not the one the actor saw when rendering the checkbox.
func (s *Service) SetItemCompletion(ctx context.Context, cmd CompletionCommand) error {
	if err := s.store.SetItemCompletion(ctx, cmd.OrderID, cmd.RecordID, cmd.Completed); err != nil {
		return err
	}
	s.publish(ctx, bus.OpUpdate, TableOrderItems, cmd.OrderID, time.Now(), completionPayload{RecordID: cmd.RecordID, Completed: cmd.Completed})
	return nil
}

// SetAddOnCompletion is the add-on counterpart of SetItemCompletion.
func (s *Service) SetAddOnCompletion(ctx context.Context, cmd CompletionCommand) error {
	if err := s.store.SetAddOnCompletion(ctx, cmd.OrderID, cmd.RecordID, cmd.Completed); err != nil {
		return err
	}
	s.publish(ctx, bus.OpUpdate, TableOrderItems, cmd.OrderID, time.Now(), completionPayload{RecordID: cmd.RecordID, Completed: cmd.Completed})
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetComposite(ctx context.Context, id types.ID) (*Composite, error) {
	return s.store.GetComposite(ctx, id)
}

func (s *Service) ListByStatus(ctx context.Context, statuses []Status) ([]Order, error) {
	return s.store.ListByStatus(ctx, statuses)
}

func (s *Service) ListWithItems(ctx context.Context, statuses []Status) ([]Composite, error) {
	return s.store.ListWithItems(ctx, statuses)
}

func (s *Service) History(ctx context.Context, id types.ID) ([]StatusEvent, error) {
	return s.store.Events(ctx, id)
}

type statusPayload struct {
	Status          Status    `json:"status"`
	StatusUpdatedAt time.Time `json:"status_updated_at"`
}

type riderPayload struct {
	RiderID types.ID `json:"rider_id"`
}

type completionPayload struct {
	RecordID  types.ID `json:"record_id"`
	Completed bool     `json:"completed"`
}

// publish is best-effort: the persisted state is the source of truth and
// pollers reconcile anything a dropped event would have carried.
func (s *Service) publish(ctx context.Context, op bus.Op, table string, key types.ID, at time.Time, payload any) {
	if s.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.bus.Publish(ctx, bus.Event{Op: op, Table: table, Key: string(key), At: at, Payload: raw})
}
