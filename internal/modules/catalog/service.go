// README: Catalogue search: radius/limit normalisation, capacity filter, distance ordering.
package catalog

import (
	"context"
	"math"

	"github.com/redis/go-redis/v9"

	"concierge/internal/types"
)

// geoIndex is the subset of Store used by Service; tests substitute an in-memory index.
type geoIndex interface {
	Nearby(ctx context.Context, category Category, p types.Point, radiusKm float64, count int) ([]redis.GeoLocation, error)
	GetMany(ctx context.Context, ids []string) (map[string]Listing, error)
	Get(ctx context.Context, id types.ID) (*Listing, error)
}

type Service struct {
	store geoIndex
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	if !validCategory(q.Category) || !q.Near.Valid() {
		return nil, ErrBadRequest
	}
	radius := q.RadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}
	radius = math.Min(radius, maxRadiusKm)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	locs, err := s.store.Nearby(ctx, q.Category, q.Near, radius, searchPoolSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(locs))
	for i, l := range locs {
		ids[i] = l.Name
	}
	docs, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, limit)
	for _, loc := range locs {
		l, ok := docs[loc.Name]
		if !ok || l.Capacity < q.MinCapacity {
			continue
		}
		hits = append(hits, Hit{Listing: l, DistanceKm: math.Round(loc.Dist*10) / 10})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Listing, error) {
	return s.store.Get(ctx, id)
}
