// README: Catalogue store backed by a Redis GEO index per category plus JSON documents.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"concierge/internal/types"
)

const (
	geoKeyPrefix     = "catalog:listings:%s"
	listingKeyPrefix = "catalog:listing:%s"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// Upsert writes the listing document and indexes its position.
func (s *Store) Upsert(ctx context.Context, l Listing) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, listingKey(l.ID), raw, 0)
	pipe.GeoAdd(ctx, geoKey(l.Category), &redis.GeoLocation{
		Name:      string(l.ID),
		Longitude: l.Position.Lng,
		Latitude:  l.Position.Lat,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, l Listing) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, listingKey(l.ID))
	pipe.ZRem(ctx, geoKey(l.Category), string(l.ID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Listing, error) {
	raw, err := s.redis.Get(ctx, listingKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", id, err)
	}
	return &l, nil
}

// Nearby returns up to count listing ids in category within radiusKm of p, nearest first.
func (s *Store) Nearby(ctx context.Context, category Category, p types.Point, radiusKm float64, count int) ([]redis.GeoLocation, error) {
	return s.redis.GeoSearchLocation(ctx, geoKey(category), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      count,
		},
		WithDist: true,
	}).Result()
}

// GetMany loads listing documents in one round trip; missing ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]Listing, error) {
	out := make(map[string]Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = listingKey(types.ID(id))
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var l Listing
		if err := json.Unmarshal([]byte(str), &l); err != nil {
			continue
		}
		out[ids[i]] = l
	}
	return out, nil
}

func geoKey(c Category) string {
	return fmt.Sprintf(geoKeyPrefix, string(c))
}

func listingKey(id types.ID) string {
	return fmt.Sprintf(listingKeyPrefix, string(id))
}
