// README: Google Directions wrapper used for ground-transfer estimates.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

// RouteService handles interactions with the Google Directions API.
type RouteService struct {
	client *maps.Client
}

// TravelEstimate is the driving estimate for one leg.
type TravelEstimate struct {
	Duration       time.Duration
	DistanceMeters int
	DistanceText   string
	Summary        string
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// GetTravelEstimate returns the driving estimate from origin to destination.
func (s *RouteService) GetTravelEstimate(ctx context.Context, origin, destination string) (TravelEstimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Language:    "en",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return TravelEstimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return TravelEstimate{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return TravelEstimate{
		Duration:       leg.Duration,
		DistanceMeters: leg.Distance.Meters,
		DistanceText:   leg.Distance.HumanReadable,
		Summary:        routes[0].Summary,
	}, nil
}
