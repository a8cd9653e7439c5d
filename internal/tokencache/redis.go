package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "vicare:token:"

// RedisStore keeps the record under one key per account
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store for account. A zero ttl keeps
// the key until it is overwritten.
func NewRedisStore(client *redis.Client, account string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    tokenPrefix + account,
		ttl:    ttl,
	}
}

// AccountKey derives a stable, non-reversible key for a client id and username
func AccountKey(clientID, username string) string {
	sum := sha256.Sum256([]byte(clientID + "\x00" + username))
	return hex.EncodeToString(sum[:8])
}

// Key returns the Redis key holding the record
func (s *RedisStore) Key() string {
	return s.key
}

// Load retrieves the record. A missing key yields nil, nil.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token record: %w", err)
	}
	return decodeRecord(data)
}

// Save stores the record
func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving token record: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
