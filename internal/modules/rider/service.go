// README: Rider position updates fan out through the change bus.
package rider

import (
	"context"
	"encoding/json"
	"time"

	"angierens/internal/bus"
	"angierens/internal/modules/order"
	"angierens/internal/types"
)

type Service struct {
	store *Store
	bus   bus.Bus
}

func NewService(store *Store, b bus.Bus) *Service {
	return &Service{store: store, bus: b}
}

type positionPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Update records a rider position and announces it. High-frequency callers
// tolerate a dropped announcement; trackers reconcile from the latest stored
// position on the next event.
func (s *Service) Update(ctx context.Context, riderID types.ID, pos types.Point) error {
	if riderID == "" || pos.Zero() {
		return order.ErrValidation
	}
	now := time.Now()
	if err := s.store.SetPosition(ctx, Snapshot{RiderID: riderID, Position: pos, RecordedAt: now}); err != nil {
		return err
	}
	if s.bus != nil {
		raw, err := json.Marshal(positionPayload{Lat: pos.Lat, Lng: pos.Lng})
		if err == nil {
			_ = s.bus.Publish(ctx, bus.Event{
				Op:      bus.OpUpdate,
				Table:   TableRiderLocation,
				Key:     string(riderID),
				At:      now,
				Payload: raw,
			})
		}
	}
	return nil
}

func (s *Service) Latest(ctx context.Context, riderID types.ID) (types.Point, time.Time, bool, error) {
	return s.store.LatestPosition(ctx, riderID)
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return s.store.Nearby(ctx, p, radiusKm)
}
