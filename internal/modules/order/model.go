// README: Order aggregate, status definitions, and the per-actor transition table.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"angierens/internal/types"
)

type Status string

const (
	StatusNone       Status = ""
	StatusPending    Status = "Pending"
	StatusQueueing   Status = "Queueing"
	StatusPreparing  Status = "Preparing"
	StatusCooking    Status = "Cooking"
	StatusReady      Status = "Ready"
	StatusOnDelivery Status = "On Delivery"
	StatusClaimOrder Status = "Claim Order"
	StatusCompleted  Status = "Completed"
	StatusRefunding  Status = "Refunding"
	StatusRefund     Status = "Refund"
	StatusRejected   Status = "Rejected"
	StatusCancelled  Status = "Cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefund, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
	RoleAdmin    Role = "admin"
	RoleRider    Role = "rider"
)

type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "Delivery"
	FulfillmentPickup   Fulfillment = "Pickup"
)

type PaymentMethod string

const (
	MethodCash      PaymentMethod = "Cash"
	MethodGCash     PaymentMethod = "GCash"
	MethodGCashHalf PaymentMethod = "GCash 50%"
)

// Cash reports whether the method carries no provider fee.
func (m PaymentMethod) Cash() bool {
	return m == MethodCash
}

type transition struct {
	From  Status
	To    Status
	Actor Role
}

// transitions is the single authority for which actor may move which state.
// Kitchen staff own the cooking range, the dispatcher/admin owns payment
// confirmation, dispatch, and refund resolution, the customer owns
// cancellation, refund initiation, and pickup confirmation.
var transitions = []transition{
	{StatusPending, StatusQueueing, RoleAdmin},
	{StatusPending, StatusCancelled, RoleCustomer},
	{StatusPending, StatusCancelled, RoleAdmin},
	{StatusPending, StatusRefunding, RoleCustomer},

	{StatusQueueing, StatusPreparing, RoleAdmin},
	{StatusQueueing, StatusRefunding, RoleCustomer},

	{StatusPreparing, StatusCooking, RoleKitchen},
	{StatusCooking, StatusReady, RoleKitchen},

	{StatusReady, StatusOnDelivery, RoleAdmin},
	{StatusReady, StatusClaimOrder, RoleAdmin},

	{StatusOnDelivery, StatusCompleted, RoleRider},
	{StatusOnDelivery, StatusCompleted, RoleAdmin},
	{StatusClaimOrder, StatusCompleted, RoleCustomer},
	{StatusClaimOrder, StatusCompleted, RoleAdmin},

	{StatusRefunding, StatusRefund, RoleAdmin},
	{StatusRefunding, StatusRejected, RoleAdmin},
}

var transitionSet = func() map[transition]bool {
	m := make(map[transition]bool, len(transitions))
	for _, t := range transitions {
		m[t] = true
	}
	return m
}()

// CanTransition reports whether actor may move an order from one status to
// another. Terminal states have no outgoing edges.
func CanTransition(from, to Status, actor Role) bool {
	return transitionSet[transition{From: from, To: to, Actor: actor}]
}

// AllowedNext returns the reachable successor statuses of from, for any actor.
func AllowedNext(from Status) []Status {
	var next []Status
	seen := map[Status]bool{}
	for _, t := range transitions {
		if t.From == from && !seen[t.To] {
			next = append(next, t.To)
			seen[t.To] = true
		}
	}
	return next
}

// fulfillmentAllows gates the two Ready successors on the order's
// fulfillment type.
func fulfillmentAllows(to Status, f Fulfillment) bool {
	switch to {
	case StatusOnDelivery:
		return f == FulfillmentDelivery
	case StatusClaimOrder:
		return f == FulfillmentPickup
	}
	return true
}

type Order struct {
	ID                  types.ID
	OrderNo             int
	CustomerID          types.ID
	CustomerName        string
	Status              Status
	StatusVersion       int
	Fulfillment         Fulfillment
	SpecialInstructions string
	TotalPrice          decimal.Decimal
	CreatedAt           time.Time
	StatusUpdatedAt     time.Time
	CompletedAt         *time.Time
}

type Item struct {
	ID        types.ID
	OrderID   types.ID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Completed bool
	AddOns    []AddOn
}

type AddOn struct {
	ID        types.ID
	ItemID    types.ID
	Name      string
	Quantity  int
	Subtotal  decimal.Decimal
	Completed bool
}

type Payment struct {
	OrderID    types.ID
	Method     PaymentMethod
	AmountPaid decimal.Decimal
	Paid       bool
	PaidAt     *time.Time
}

type Delivery struct {
	OrderID     types.ID
	Fee         decimal.Decimal
	Address     string
	Destination types.Point
	RiderID     *types.ID
	Status      string
}

// RefundInfo is the read-side projection of a refund record; writes live in
// the refund module.
type RefundInfo struct {
	ID            types.ID
	Reason        string
	Destination   string
	Status        string
	Fee           decimal.Decimal
	Total         decimal.Decimal
	StaffResponse string
	ProofRef      string
	RequestedAt   time.Time
}

// StatusEvent is one committed status change, kept as an audit trail.
type StatusEvent struct {
	ID        int64
	OrderID   types.ID
	From      Status
	To        Status
	Actor     Role
	CreatedAt time.Time
}
