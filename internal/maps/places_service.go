// README: Google Places text search for restaurants and experiences near a destination.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

var (
	ErrNoRoute   = errors.New("no route found")
	ErrNoResults = errors.New("no results found")
)

// Place represents a simplified location result.
type Place struct {
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Rating           float32 `json:"rating"`
	PlaceID          string  `json:"placeId"`
	UserRatingsTotal int     `json:"userRatingsTotal"`
}

// SearchOptions holds refinements supplied by the planner.
type SearchOptions struct {
	// OpenNow restricts results to places currently open.
	OpenNow bool
	// MinRating drops results rated below it; zero means 4.0.
	MinRating float32
	// ExcludeKeywords are terms that disqualify any result whose name contains them.
	ExcludeKeywords []string
	// Limit caps the number of results; zero means 5.
	Limit int
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client *maps.Client
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client}, nil
}

// SearchNearby searches for places matching query near location. opts may be nil.
func (s *PlacesService) SearchNearby(ctx context.Context, location, query string, opts *SearchOptions) ([]Place, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	fullQuery := query
	if location != "" {
		fullQuery = fmt.Sprintf("%s near %s", query, location)
	}

	resp, err := s.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    fullQuery,
		OpenNow:  opts.OpenNow,
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	results := filterPlaces(resp.Results, opts)
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

func filterPlaces(in []maps.PlacesSearchResult, opts *SearchOptions) []Place {
	minRating := opts.MinRating
	if minRating == 0 {
		minRating = 4.0
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	var out []Place
	for _, r := range in {
		if r.Rating < minRating {
			continue
		}
		if containsAnyFold(r.Name, opts.ExcludeKeywords) {
			continue
		}
		out = append(out, Place{
			Name:             r.Name,
			Address:          r.FormattedAddress,
			Rating:           r.Rating,
			PlaceID:          r.PlaceID,
			UserRatingsTotal: r.UserRatingsTotal,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func containsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
