package jar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotStored indicates the cookie is not persisted (or has expired)
	ErrNotStored = errors.New("cookie not stored")

	// ErrInvalidEntry indicates the persisted cookie is corrupted
	ErrInvalidEntry = errors.New("invalid cookie entry")
)

// Store persists cookies in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a cookie store with Redis backend.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis: redisClient,
	}
}

// Get retrieves a persisted cookie.
// Returns ErrNotStored if the key doesn't exist or the cookie has expired.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	StoreOps.WithLabelValues("get").Inc()

	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotStored
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		return nil, ErrNotStored
	}

	return &entry, nil
}

// Set stores a cookie with a TTL matching its expiry.
// An already expired entry removes the key instead.
func (s *Store) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cookie entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cookie entry: %w", err)
	}

	StoreOps.WithLabelValues("set").Inc()
	if err := s.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes persisted cookies.
func (s *Store) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}

	StoreOps.WithLabelValues("delete").Inc()
	if err := s.redis.Del(ctx, names...).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
