// README: Live delivery tracking: rider position events drive route recomputation.
package rider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"angierens/internal/bus"
	"angierens/internal/maps"
	"angierens/internal/modules/order"
	"angierens/internal/types"
)

// ErrNotTracking is returned when an order cannot carry a live tracker.
var ErrNotTracking = errors.New("order is not out for delivery")

// RouteProvider computes a drivable route between two points.
// *maps.RouteService satisfies it.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination types.Point) (*maps.Route, error)
}

// PositionSource reads a rider's last reported position and when it was
// recorded. *Service satisfies it.
type PositionSource interface {
	Latest(ctx context.Context, riderID types.ID) (types.Point, time.Time, bool, error)
}

// Tracker holds one watch per delivery being followed. Each watch subscribes
// to the rider's position events and recomputes the route to the customer,
// latest position wins. It also follows the order's own status events and
// ends itself once the order is no longer out for delivery.
type Tracker struct {
	positions PositionSource
	routes    RouteProvider
	bus       bus.Bus
	origin    types.Point // store location, used for the planned route

	mu      sync.Mutex
	watches map[types.ID]*watch
}

type watch struct {
	posSub *bus.Subscription
	ordSub *bus.Subscription
	cancel context.CancelFunc
}

func (w *watch) release() {
	w.cancel()
	w.posSub.Close()
	w.ordSub.Close()
}

func NewTracker(positions PositionSource, routes RouteProvider, b bus.Bus, origin types.Point) *Tracker {
	return &Tracker{
		positions: positions,
		routes:    routes,
		bus:       b,
		origin:    origin,
		watches:   make(map[types.ID]*watch),
	}
}

// Attach starts tracking a delivery. The order must be out for delivery with
// a rider assigned. The first update carries either the route from the
// rider's last known position, or the planned store-to-customer route when
// the rider has not reported yet. The returned channel closes when the watch
// is detached or the order leaves the out-for-delivery state.
func (t *Tracker) Attach(ctx context.Context, comp *order.Composite) (<-chan RouteUpdate, error) {
	if comp.Order.Status != order.StatusOnDelivery {
		return nil, ErrNotTracking
	}
	if comp.Delivery == nil || comp.Delivery.RiderID == nil || *comp.Delivery.RiderID == "" {
		return nil, ErrNotTracking
	}
	riderID := *comp.Delivery.RiderID
	destination := comp.Delivery.Destination

	posSub, err := t.bus.Subscribe(ctx, TableRiderLocation, string(riderID))
	if err != nil {
		return nil, err
	}
	ordSub, err := t.bus.Subscribe(ctx, order.TableOrders, string(comp.Order.ID))
	if err != nil {
		posSub.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &watch{posSub: posSub, ordSub: ordSub, cancel: cancel}
	t.mu.Lock()
	if old, ok := t.watches[comp.Order.ID]; ok {
		old.release()
	}
	t.watches[comp.Order.ID] = w
	t.mu.Unlock()

	out := make(chan RouteUpdate, 1)
	go t.run(watchCtx, w, out, comp.Order.ID, riderID, destination, comp.Order.StatusUpdatedAt)
	return out, nil
}

// Current computes a one-shot route for a delivery without holding a watch.
func (t *Tracker) Current(ctx context.Context, comp *order.Composite) (RouteUpdate, error) {
	if comp.Order.Status != order.StatusOnDelivery {
		return RouteUpdate{}, ErrNotTracking
	}
	if comp.Delivery == nil || comp.Delivery.RiderID == nil || *comp.Delivery.RiderID == "" {
		return RouteUpdate{}, ErrNotTracking
	}
	u, _ := t.initialUpdate(ctx, *comp.Delivery.RiderID, comp.Delivery.Destination)
	return u, nil
}

// Detach stops tracking the order. Detaching an untracked order is a no-op.
func (t *Tracker) Detach(orderID types.ID) {
	t.mu.Lock()
	w := t.watches[orderID]
	t.mu.Unlock()
	if w != nil {
		t.drop(orderID, w)
	}
}

// drop releases a watch, removing it from the registry only if it is still
// the registered one; a replacement attached in the meantime stays.
func (t *Tracker) drop(orderID types.ID, w *watch) {
	t.mu.Lock()
	if t.watches[orderID] == w {
		delete(t.watches, orderID)
	}
	t.mu.Unlock()
	w.release()
}

type orderStatusPayload struct {
	Status order.Status `json:"status"`
}

func (t *Tracker) run(ctx context.Context, w *watch, out chan<- RouteUpdate, orderID, riderID types.ID, destination types.Point, statusAt time.Time) {
	defer t.drop(orderID, w)
	defer close(out)

	emit := func(u RouteUpdate) bool {
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	u, lastAt := t.initialUpdate(ctx, riderID, destination)
	if !emit(u) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.ordSub.Events():
			if !ok {
				return
			}
			if e.At.Before(statusAt) {
				continue
			}
			var sp orderStatusPayload
			if err := json.Unmarshal(e.Payload, &sp); err != nil || sp.Status == "" {
				// Not a status change (rider assignment etc).
				continue
			}
			statusAt = e.At
			if sp.Status != order.StatusOnDelivery {
				return
			}
		case e, ok := <-w.posSub.Events():
			if !ok {
				return
			}
			if e.At.Before(lastAt) {
				continue
			}
			lastAt = e.At

			var p positionPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				continue
			}
			at := types.Point{Lat: p.Lat, Lng: p.Lng}
			u := RouteUpdate{RiderAt: &at, At: e.At}
			u.Route, u.Err = t.routes.Route(ctx, at, destination)
			if !emit(u) {
				return
			}
		}
	}
}

// initialUpdate computes the first route before any live event arrives. The
// second return is when the used position was recorded, so queued events
// older than it can be discarded; zero when no position is known yet.
func (t *Tracker) initialUpdate(ctx context.Context, riderID types.ID, destination types.Point) (RouteUpdate, time.Time) {
	pos, recordedAt, ok, err := t.positions.Latest(ctx, riderID)
	if err != nil {
		return RouteUpdate{At: time.Now(), Err: err}, time.Time{}
	}
	if !ok {
		u := RouteUpdate{At: time.Now(), Planned: true}
		u.Route, u.Err = t.routes.Route(ctx, t.origin, destination)
		return u, time.Time{}
	}
	u := RouteUpdate{RiderAt: &pos, At: recordedAt}
	u.Route, u.Err = t.routes.Route(ctx, pos, destination)
	return u, recordedAt
}
