// README: Catalogue search tests (in-memory index; redis round trip when available).
package catalog

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge/internal/types"
)

type memIndex struct {
	listings []Listing
}

func (m *memIndex) Nearby(_ context.Context, c Category, p types.Point, radiusKm float64, count int) ([]redis.GeoLocation, error) {
	var out []redis.GeoLocation
	for _, l := range m.listings {
		if l.Category != c {
			continue
		}
		d := p.DistanceKm(l.Position)
		if d <= radiusKm {
			out = append(out, redis.GeoLocation{Name: string(l.ID), Dist: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dist < out[j].Dist })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (m *memIndex) GetMany(_ context.Context, ids []string) (map[string]Listing, error) {
	out := map[string]Listing{}
	for _, id := range ids {
		for _, l := range m.listings {
			if string(l.ID) == id {
				out[id] = l
			}
		}
	}
	return out, nil
}

func (m *memIndex) Get(_ context.Context, id types.ID) (*Listing, error) {
	for _, l := range m.listings {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

var nice = types.Point{Lat: 43.70, Lng: 7.27}

func newMemService() *Service {
	return &Service{store: &memIndex{listings: []Listing{
		{ID: "y1", Category: CategoryYacht, Name: "Azzurra", Position: types.Point{Lat: 43.71, Lng: 7.28}, Capacity: 12},
		{ID: "y2", Category: CategoryYacht, Name: "Blue Pearl", Position: types.Point{Lat: 43.55, Lng: 7.02}, Capacity: 6},
		{ID: "y3", Category: CategoryYacht, Name: "Far Away", Position: types.Point{Lat: 41.90, Lng: 12.50}, Capacity: 20},
		{ID: "v1", Category: CategoryVilla, Name: "Villa Azur", Position: types.Point{Lat: 43.70, Lng: 7.30}, Capacity: 8},
	}}}
}

func TestSearch_NearestFirstWithinRadius(t *testing.T) {
	svc := newMemService()
	hits, err := svc.Search(context.Background(), SearchQuery{Category: CategoryYacht, Near: nice, RadiusKm: 100})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, types.ID("y1"), hits[0].Listing.ID)
	assert.Equal(t, types.ID("y2"), hits[1].Listing.ID)
}

func TestSearch_CapacityAndLimit(t *testing.T) {
	svc := newMemService()
	hits, err := svc.Search(context.Background(), SearchQuery{Category: CategoryYacht, Near: nice, RadiusKm: 100, MinCapacity: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Azzurra", hits[0].Listing.Name)

	hits, err = svc.Search(context.Background(), SearchQuery{Category: CategoryYacht, Near: nice, RadiusKm: 100, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_RejectsUnknownCategory(t *testing.T) {
	_, err := newMemService().Search(context.Background(), SearchQuery{Category: "submarine"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestStore_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("CONCIERGE_TEST_REDIS")
	if addr == "" {
		t.Skip("CONCIERGE_TEST_REDIS not set; skipping redis-backed tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	store := NewStore(client)
	l := Listing{ID: types.ID("test-" + time.Now().Format("150405.000000")), Category: CategoryChauffeur, Name: "S-Class", Position: nice, Capacity: 3}
	require.NoError(t, store.Upsert(ctx, l))
	t.Cleanup(func() { _ = store.Remove(ctx, l) })

	hits, err := NewService(store).Search(ctx, SearchQuery{Category: CategoryChauffeur, Near: nice, RadiusKm: 1})
	require.NoError(t, err)
	found := false
	for _, h := range hits {
		if h.Listing.ID == l.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSearch_RejectsInvalidCoordinates(t *testing.T) {
	_, err := newMemService().Search(context.Background(), SearchQuery{Category: CategoryYacht, Near: types.Point{Lat: 123, Lng: 456}})
	assert.ErrorIs(t, err, ErrBadRequest)
}
