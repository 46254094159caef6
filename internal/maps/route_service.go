package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	gmaps "googlemaps.github.io/maps"

	"angierens/internal/types"
)

// ErrNoRoute means the directions API answered but found no way between the
// two points. Callers surface it distinctly instead of drawing an empty route.
var ErrNoRoute = errors.New("no route found")

// Route is a drivable path between two coordinates.
type Route struct {
	Points   []types.Point
	Distance string
	Duration time.Duration
}

// RouteService handles interactions with the Google Maps Directions API.
type RouteService struct {
	client *gmaps.Client
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route returns the driving polyline from origin to destination.
func (s *RouteService) Route(ctx context.Context, origin, destination types.Point) (*Route, error) {
	r := &gmaps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        gmaps.TravelModeDriving,
		Region:      "PH",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	coords, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	points := make([]types.Point, len(coords))
	for i, c := range coords {
		points[i] = types.Point{Lat: c.Lat, Lng: c.Lng}
	}

	leg := routes[0].Legs[0]
	return &Route{
		Points:   points,
		Distance: leg.Distance.HumanReadable,
		Duration: leg.Duration,
	}, nil
}
