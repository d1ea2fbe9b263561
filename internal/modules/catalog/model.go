// README: Luxury listing catalogue entries (jets, yachts, villas, chauffeurs).
package catalog

import (
	"errors"

	"concierge/internal/types"
)

type Category string

const (
	CategoryPrivateJet Category = "private_jet"
	CategoryYacht      Category = "yacht"
	CategoryVilla      Category = "villa"
	CategoryChauffeur  Category = "chauffeur"
)

var AllCategories = []Category{CategoryPrivateJet, CategoryYacht, CategoryVilla, CategoryChauffeur}

var (
	ErrNotFound   = errors.New("listing not found")
	ErrBadRequest = errors.New("bad request")
)

type Listing struct {
	ID       types.ID    `json:"id"`
	Category Category    `json:"category"`
	Name     string      `json:"name"`
	City     string      `json:"city"`
	Position types.Point `json:"position"`
	Capacity int         `json:"capacity"`
	Rating   float64     `json:"rating"`
	Summary  string      `json:"summary,omitempty"`
}

type SearchQuery struct {
	Category    Category
	Near        types.Point
	RadiusKm    float64
	MinCapacity int
	Limit       int
}

// Hit is a listing with its distance from the search point.
type Hit struct {
	Listing    Listing `json:"listing"`
	DistanceKm float64 `json:"distanceKm"`
}

const (
	defaultRadiusKm = 50.0
	maxRadiusKm     = 500.0
	defaultLimit    = 5
	maxLimit        = 10
	// searchPoolSize is how many GEO candidates to fetch before capacity filtering.
	searchPoolSize = 50
)

func validCategory(c Category) bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}
