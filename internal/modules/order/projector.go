// README: Read-only composite projection of an order for actor views.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"angierens/internal/bus"
	"angierens/internal/types"
)

// Composite is the nested read of one order as stored.
type Composite struct {
	Order    Order
	Items    []Item
	Payment  *Payment
	Delivery *Delivery
	Refund   *RefundInfo
}

// Group is the dashboard bucket a status projects into. Buckets are display
// only; the status enum stays the single truth.
type Group string

const (
	GroupNew       Group = "New Orders"
	GroupInProcess Group = "In Process"
	GroupCompleted Group = "Completed"
)

// GroupOf projects a status into its dashboard bucket.
func GroupOf(s Status) Group {
	switch s {
	case StatusPending:
		return GroupNew
	case StatusCompleted:
		return GroupCompleted
	default:
		return GroupInProcess
	}
}

type ProgressStep struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type ViewAddOn struct {
	ID        types.ID        `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Completed bool            `json:"completed"`
}

type ViewItem struct {
	ID        types.ID        `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Completed bool            `json:"completed"`
	AddOns    []ViewAddOn     `json:"add_ons,omitempty"`
}

type ViewPayment struct {
	Method      PaymentMethod   `json:"method"`
	Display     string          `json:"display"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PercentPaid int             `json:"percent_paid"`
	Paid        bool            `json:"paid"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

type ViewDelivery struct {
	Fee         decimal.Decimal `json:"fee"`
	Address     string          `json:"address"`
	Destination types.Point     `json:"destination"`
	RiderID     *types.ID       `json:"rider_id,omitempty"`
	Status      string          `json:"status"`
}

type ViewRefund struct {
	ID            types.ID        `json:"id"`
	Reason        string          `json:"reason"`
	Destination   string          `json:"destination"`
	Status        string          `json:"status"`
	Fee           decimal.Decimal `json:"fee"`
	Total         decimal.Decimal `json:"total"`
	StaffResponse string          `json:"staff_response,omitempty"`
	ProofRef      string          `json:"proof_ref,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
}

// View is what one actor interface renders for a single order.
type View struct {
	OrderID             types.ID        `json:"order_id"`
	OrderNo             int             `json:"order_no"`
	Status              Status          `json:"status"`
	Group               Group           `json:"group"`
	Fulfillment         Fulfillment     `json:"fulfillment"`
	CustomerName        string          `json:"customer_name"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Items               []ViewItem      `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	Total               decimal.Decimal `json:"total"`
	Payment             *ViewPayment    `json:"payment,omitempty"`
	Delivery            *ViewDelivery   `json:"delivery,omitempty"`
	Refund              *ViewRefund     `json:"refund,omitempty"`
	Progress            []ProgressStep  `json:"progress"`
	CreatedAt           time.Time       `json:"created_at"`
	StatusUpdatedAt     time.Time       `json:"status_updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// statusRank orders the forward path for progress rendering. Side-branch
// statuses keep the rank of the state they left from, freezing the tracker.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusQueueing:   1,
	StatusPreparing:  2,
	StatusCooking:    2,
	StatusReady:      3,
	StatusOnDelivery: 4,
	StatusClaimOrder: 4,
	StatusCompleted:  5,
	StatusRefunding:  1,
	StatusRefund:     1,
	StatusRejected:   1,
	StatusCancelled:  0,
}

// BuildView assembles the composite into a render-ready view. It is pure:
// same composite in, same view out, no side effects.
func BuildView(c Composite) View {
	o := c.Order
	v := View{
		OrderID:             o.ID,
		OrderNo:             o.OrderNo,
		Status:              o.Status,
		Group:               GroupOf(o.Status),
		Fulfillment:         o.Fulfillment,
		CustomerName:        o.CustomerName,
		SpecialInstructions: o.SpecialInstructions,
		Total:               o.TotalPrice,
		CreatedAt:           o.CreatedAt,
		StatusUpdatedAt:     o.StatusUpdatedAt,
		CompletedAt:         o.CompletedAt,
	}

	v.Subtotal = decimal.Zero
	for _, it := range c.Items {
		vi := ViewItem{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			Completed: it.Completed,
		}
		v.Subtotal = v.Subtotal.Add(it.Subtotal)
		for _, a := range it.AddOns {
			vi.AddOns = append(vi.AddOns, ViewAddOn{
				ID: a.ID, Name: a.Name, Quantity: a.Quantity,
				Subtotal: a.Subtotal, Completed: a.Completed,
			})
			v.Subtotal = v.Subtotal.Add(a.Subtotal)
		}
		v.Items = append(v.Items, vi)
	}

	v.DeliveryFee = decimal.Zero
	if c.Delivery != nil {
		v.DeliveryFee = c.Delivery.Fee
		v.Delivery = &ViewDelivery{
			Fee:         c.Delivery.Fee,
			Address:     c.Delivery.Address,
			Destination: c.Delivery.Destination,
			RiderID:     c.Delivery.RiderID,
			Status:      c.Delivery.Status,
		}
	}

	if c.Payment != nil {
		vp := ViewPayment{
			Method:     c.Payment.Method,
			Display:    string(c.Payment.Method),
			AmountPaid: c.Payment.AmountPaid,
			Paid:       c.Payment.Paid,
			PaidAt:     c.Payment.PaidAt,
		}
		// Percent paid keeps the original denominator, food + delivery fee,
		// even when the fee is zero for pickup orders.
		denom := v.Subtotal.Add(v.DeliveryFee)
		if !c.Payment.Method.Cash() && denom.IsPositive() {
			vp.PercentPaid = int(c.Payment.AmountPaid.Div(denom).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
			vp.Display = "Online - GCash"
		}
		v.Payment = &vp
	}

	if c.Refund != nil {
		v.Refund = &ViewRefund{
			ID:            c.Refund.ID,
			Reason:        c.Refund.Reason,
			Destination:   c.Refund.Destination,
			Status:        c.Refund.Status,
			Fee:           c.Refund.Fee,
			Total:         c.Refund.Total,
			StaffResponse: c.Refund.StaffResponse,
			ProofRef:      c.Refund.ProofRef,
			RequestedAt:   c.Refund.RequestedAt,
		}
	}

	rank := statusRank[o.Status]
	paid := c.Payment != nil && c.Payment.Paid
	v.Progress = []ProgressStep{
		{Key: "placed", Label: "Order Placed", Completed: true},
		{Key: "payment", Label: "Payment Confirmed", Completed: paid},
		{Key: "queueing", Label: "Queuing", Completed: rank >= 1},
		{Key: "preparing", Label: "Preparing", Completed: rank >= 2},
		{Key: "ready", Label: "Ready", Completed: rank >= 3},
		{Key: "completed", Label: "Completed", Completed: o.Status == StatusCompleted},
	}
	return v
}

// Projector re-runs the composite read whenever the watched order changes.
type Projector struct {
	store *Store
	bus   bus.Bus
}

func NewProjector(store *Store, b bus.Bus) *Projector {
	return &Projector{store: store, bus: b}
}

// View reads and assembles the current composite once.
func (p *Projector) View(ctx context.Context, id types.ID) (*View, error) {
	c, err := p.store.GetComposite(ctx, id)
	if err != nil {
		return nil, err
	}
	v := BuildView(*c)
	return &v, nil
}

// Watch emits a fresh view for every change event on the order or its items.
// Events older than the last applied commit marker are discarded; the bus is
// at-least-once so duplicates and stale deliveries are expected. The returned
// stop function must be called when the view closes.
func (p *Projector) Watch(ctx context.Context, id types.ID) (<-chan View, func(), error) {
	orderSub, err := p.bus.Subscribe(ctx, TableOrders, string(id))
	if err != nil {
		return nil, nil, err
	}
	itemSub, err := p.bus.Subscribe(ctx, TableOrderItems, string(id))
	if err != nil {
		orderSub.Close()
		return nil, nil, err
	}

	out := make(chan View, 1)
	stop := func() {
		orderSub.Close()
		itemSub.Close()
	}

	go func() {
		defer close(out)
		var lastAt time.Time
		refresh := func(at time.Time) {
			if at.Before(lastAt) {
				return
			}
			lastAt = at
			v, err := p.View(ctx, id)
			if err != nil {
				return
			}
			select {
			case out <- *v:
			case <-ctx.Done():
			}
		}
		refresh(time.Time{})
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-orderSub.Events():
				if !ok {
					return
				}
				refresh(e.At)
			case e, ok := <-itemSub.Events():
				if !ok {
					return
				}
				refresh(e.At)
			}
		}
	}()
	return out, stop, nil
}

// Poll periodically feeds aggregate views that tolerate staleness, such as
// the dashboard boards, instead of holding a push subscription per order.
func (p *Projector) Poll(ctx context.Context, interval time.Duration, statuses []Status, fn func([]Order)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orders, err := p.store.ListByStatus(ctx, statuses)
			if err != nil {
				continue
			}
			fn(orders)
		}
	}
}
