// README: Refund workflow: customer request, admin resolution.
package refund

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"angierens/internal/modules/order"
	"angierens/internal/types"
)

// Service coordinates the refund workflow against the order lifecycle. The
// order's transition table owns the legality window: a request only succeeds
// while the customer may still move the order into Refunding.
type Service struct {
	store  *Store
	orders *order.Service
}

func NewService(store *Store, orders *order.Service) *Service {
	return &Service{store: store, orders: orders}
}

type RequestCommand struct {
	OrderID            types.ID
	CustomerID         types.ID
	Reason             string
	Destination        string
	ConfirmDestination string
}

type ResolveCommand struct {
	OrderID       types.ID
	Approve       bool
	StaffResponse string
	ProofRef      string
}

// Request opens a refund: moves the order into Refunding and records the
// pending request. The payout destination is double-entered by the customer
// and stored masked.
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (types.ID, error) {
	if strings.TrimSpace(cmd.Reason) == "" {
		return "", fmt.Errorf("%w: reason is required", order.ErrValidation)
	}
	if strings.TrimSpace(cmd.Destination) == "" {
		return "", fmt.Errorf("%w: destination is required", order.ErrValidation)
	}
	if cmd.Destination != cmd.ConfirmDestination {
		return "", fmt.Errorf("%w: destination confirmation does not match", order.ErrValidation)
	}

	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return "", err
	}
	if o.CustomerID != cmd.CustomerID {
		return "", order.ErrNotFound
	}

	r := &Refund{
		ID:          types.ID(uuid.NewString()),
		OrderID:     cmd.OrderID,
		Reason:      strings.TrimSpace(cmd.Reason),
		Destination: MaskDestination(cmd.Destination),
		Status:      StatusPending,
		RequestedAt: time.Now(),
	}

	// The status move and the refund row commit together: an order in
	// Refunding always has a pending request on record.
	err = s.orders.TransitionWithin(ctx, order.TransitionCommand{
		OrderID: cmd.OrderID,
		To:      order.StatusRefunding,
		Actor:   order.RoleCustomer,
	}, func(ctx context.Context, tx pgx.Tx) error {
		return s.store.InsertTx(ctx, tx, r)
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// Resolve closes a pending refund. On approval the payout is computed from
// the recorded payment and frozen on the refund row; later fee changes never
// touch resolved refunds.
func (s *Service) Resolve(ctx context.Context, cmd ResolveCommand) error {
	comp, err := s.orders.GetComposite(ctx, cmd.OrderID)
	if err != nil {
		return err
	}

	to := order.StatusRejected
	refundStatus := StatusRejected
	bd := Breakdown{}
	if cmd.Approve {
		if comp.Payment == nil {
			return fmt.Errorf("%w: order has no payment to refund", order.ErrInvalidState)
		}
		bd = Calculate(comp.Payment.AmountPaid, comp.Payment.Method)
		to = order.StatusRefund
		refundStatus = StatusApproved
	}

	// Closing the order and freezing the payout commit together; if no
	// pending request exists the whole resolution rolls back.
	return s.orders.TransitionWithin(ctx, order.TransitionCommand{
		OrderID: cmd.OrderID,
		To:      to,
		Actor:   order.RoleAdmin,
	}, func(ctx context.Context, tx pgx.Tx) error {
		return s.store.ResolveTx(ctx, tx, cmd.OrderID, refundStatus, bd.Fee, bd.Total, cmd.StaffResponse, cmd.ProofRef)
	})
}

func (s *Service) GetByOrder(ctx context.Context, orderID types.ID) (*Refund, error) {
	return s.store.GetByOrder(ctx, orderID)
}

func (s *Service) List(ctx context.Context, status Status) ([]Refund, error) {
	return s.store.List(ctx, status)
}
