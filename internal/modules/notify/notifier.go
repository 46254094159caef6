// README: Bridges order change events into recipient notification queues.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"angierens/internal/bus"
	"angierens/internal/modules/order"
	"angierens/internal/types"
)

// statusTitles maps order statuses to the customer-facing headline. Statuses
// without an entry stay internal and produce no notification.
var statusTitles = map[order.Status]string{
	order.StatusQueueing:   "Payment confirmed",
	order.StatusCooking:    "Your order is being cooked",
	order.StatusReady:      "Your order is ready",
	order.StatusOnDelivery: "Your order is on the way",
	order.StatusClaimOrder: "Your order is ready for pickup",
	order.StatusCompleted:  "Order completed",
	order.StatusRefund:     "Your refund was approved",
	order.StatusRejected:   "Your refund was rejected",
}

// Notifier watches all order changes and fans them into the center.
type Notifier struct {
	center *Center
	bus    bus.Bus
	orders *order.Service
}

func NewNotifier(center *Center, b bus.Bus, orders *order.Service) *Notifier {
	return &Notifier{center: center, bus: b, orders: orders}
}

// Run consumes order change events until ctx is cancelled. Missed events are
// acceptable: the queues are a convenience surface, the order view is truth.
func (n *Notifier) Run(ctx context.Context) error {
	sub, err := n.bus.Subscribe(ctx, order.TableOrders, "")
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			n.handle(ctx, e)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, e bus.Event) {
	var payload struct {
		Status order.Status `json:"status"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return
	}
	title, ok := statusTitles[payload.Status]
	if !ok {
		return
	}

	o, err := n.orders.Get(ctx, types.ID(e.Key))
	if err != nil {
		log.Printf("notify: load order %s: %v", e.Key, err)
		return
	}
	n.center.Push(o.CustomerID, title, fmt.Sprintf("Order #%d is now %s.", o.OrderNo, payload.Status))
}
