// README: Rider store backed by Redis GEO (latest) and Postgres snapshots (history).
package rider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"angierens/internal/types"
)

const riderGeoKey = "riders:positions"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

// SetPosition overwrites the rider's latest position and appends it to the
// snapshot history.
func (s *Store) SetPosition(ctx context.Context, snap Snapshot) error {
	if err := s.redis.GeoAdd(ctx, riderGeoKey, &redis.GeoLocation{
		Name:      string(snap.RiderID),
		Longitude: snap.Position.Lng,
		Latitude:  snap.Position.Lat,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd rider: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO rider_snapshots (rider_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		snap.RiderID, snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	); err != nil {
		return fmt.Errorf("append rider snapshot: %w", err)
	}
	return nil
}

// LatestPosition returns the rider's last reported position and when it was
// recorded, if any.
func (s *Store) LatestPosition(ctx context.Context, riderID types.ID) (types.Point, time.Time, bool, error) {
	positions, err := s.redis.GeoPos(ctx, riderGeoKey, string(riderID)).Result()
	if err != nil {
		return types.Point{}, time.Time{}, false, fmt.Errorf("geopos rider: %w", err)
	}
	if len(positions) == 0 || positions[0] == nil {
		return types.Point{}, time.Time{}, false, nil
	}
	p := types.Point{Lat: positions[0].Latitude, Lng: positions[0].Longitude}

	var recordedAt time.Time
	err = s.db.QueryRow(ctx, `
		SELECT recorded_at
		FROM rider_snapshots
		WHERE rider_id = $1
		ORDER BY id DESC
		LIMIT 1`, string(riderID),
	).Scan(&recordedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return types.Point{}, time.Time{}, false, fmt.Errorf("latest rider snapshot: %w", err)
	}
	return p, recordedAt, true, nil
}

// Nearby returns riders within radiusKm of a point, closest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, riderGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch riders: %w", err)
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
