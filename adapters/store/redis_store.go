package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/keepsake/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "keepsake:revoked:",
	}
}

// RevokeSession marks a progress session as revoked in Redis
func (s *RedisStore) RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error {
	if expiry <= 0 {
		// Nothing left to protect: the session's tokens are already expired
		return nil
	}

	key := s.prefix + sessionID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// IsSessionRevoked checks if a progress session is revoked in Redis
func (s *RedisStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	key := s.prefix + sessionID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}

	return val > 0, nil
}
