// README: Session memory stores: Redis (durable) and a bounded in-process map (fallback).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists session records and per-user preference profiles.
// Get methods return (nil, nil) when nothing is stored.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*Record, error)
	PutSession(ctx context.Context, rec *Record) error
	GetProfile(ctx context.Context, userID string) (map[string]any, error)
	PutProfile(ctx context.Context, userID string, prefs map[string]any) error
	// Claim takes an exclusive, expiring hold on key. It reports false when
	// someone else already holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const (
	sessionKeyPrefix = "memory:session:%s"
	profileKeyPrefix = "memory:profile:%s"
	claimKeyPrefix   = "memory:claim:%s"
)

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *RedisStore) PutSession(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(rec.SessionID), raw, s.ttl).Err()
}

func (s *RedisStore) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	raw, err := s.redis.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prefs := map[string]any{}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return prefs, nil
}

// PutProfile stores prefs without expiry; profiles outlive sessions.
func (s *RedisStore) PutProfile(ctx context.Context, userID string, prefs map[string]any) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, profileKey(userID), raw, 0).Err()
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, claimKey(key), "1", ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.redis.Del(ctx, claimKey(key)).Err()
}

func claimKey(key string) string {
	return fmt.Sprintf(claimKeyPrefix, key)
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf(sessionKeyPrefix, sessionID)
}

func profileKey(userID string) string {
	return fmt.Sprintf(profileKeyPrefix, userID)
}

// LocalStore keeps records in process memory, bounded to limit entries per kind.
// When full, the least recently updated session is dropped.
type LocalStore struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string]Record
	profiles map[string]map[string]any
	claims   map[string]time.Time
	now      func() time.Time
}

func NewLocalStore(limit int) *LocalStore {
	if limit <= 0 {
		limit = 5000
	}
	return &LocalStore{
		limit:    limit,
		sessions: make(map[string]Record),
		profiles: make(map[string]map[string]any),
		claims:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *LocalStore) GetSession(_ context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp, err := cloneRecord(rec)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *LocalStore) PutSession(_ context.Context, rec *Record) error {
	cp, err := cloneRecord(*rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[rec.SessionID]; !exists && len(s.sessions) >= s.limit {
		var oldestID string
		var oldest time.Time
		for id, r := range s.sessions {
			if oldestID == "" || r.UpdatedAt.Before(oldest) {
				oldestID, oldest = id, r.UpdatedAt
			}
		}
		delete(s.sessions, oldestID)
	}
	s.sessions[rec.SessionID] = cp
	return nil
}

func (s *LocalStore) GetProfile(_ context.Context, userID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out, nil
}

func (s *LocalStore) PutProfile(_ context.Context, userID string, prefs map[string]any) error {
	cp := make(map[string]any, len(prefs))
	for k, v := range prefs {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[userID]; !exists && len(s.profiles) >= s.limit {
		for id := range s.profiles {
			delete(s.profiles, id)
			break
		}
	}
	s.profiles[userID] = cp
	return nil
}

func (s *LocalStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, held := s.claims[key]; held && now.Before(until) {
		return false, nil
	}
	for k, until := range s.claims {
		if !now.Before(until) {
			delete(s.claims, k)
		}
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

func (s *LocalStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// cloneRecord deep-copies through JSON so callers never share maps with the store.
func cloneRecord(rec Record) (Record, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return Record{}, err
	}
	return out, nil
}
