// README: Rider position records and live-route updates.
package rider

import (
	"time"

	"angierens/internal/maps"
	"angierens/internal/types"
)

// TableRiderLocation is the change-bus table for rider position events,
// keyed by rider id.
const TableRiderLocation = "rider_location"

// Snapshot is one persisted rider position, kept for the delivery history.
type Snapshot struct {
	RiderID    types.ID
	Position   types.Point
	RecordedAt time.Time
}

// RouteUpdate is one emission of a tracked delivery: where the rider is and
// the current drivable path to the customer. Route computation failures ride
// along in Err so the stream survives transient outages.
type RouteUpdate struct {
	RiderAt *types.Point
	Route   *maps.Route
	Planned bool
	At      time.Time
	Err     error
}
