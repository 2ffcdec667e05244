package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
	"github.com/redis/go-redis/v9"
)

const (
	defaultSaltKey    = "keepsake:salt"
	defaultDigestsKey = "keepsake:digests"
)

var _ ports.SecretSource = (*RedisSource)(nil)

// RedisSource reads the salt from a string key and the digests from a hash
// keyed by digest reference.
type RedisSource struct {
	client     *redis.Client
	saltKey    string
	digestsKey string
}

// NewRedisSource creates a new Redis backed secret source
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{
		client:     client,
		saltKey:    defaultSaltKey,
		digestsKey: defaultDigestsKey,
	}
}

// LoadSecrets fetches the salt and the requested digests in one round trip
func (s *RedisSource) LoadSecrets(ctx context.Context, digestRefs []string) (*core.Secrets, error) {
	pipe := s.client.Pipeline()
	saltCmd := pipe.Get(ctx, s.saltKey)
	var digestsCmd *redis.SliceCmd
	if len(digestRefs) > 0 {
		digestsCmd = pipe.HMGet(ctx, s.digestsKey, digestRefs...)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	salt, err := saltCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load salt: %w", err)
	}

	digests := make(map[string]string, len(digestRefs))
	if digestsCmd != nil {
		values, err := digestsCmd.Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load digests: %w", err)
		}
		for i, v := range values {
			if str, ok := v.(string); ok {
				digests[digestRefs[i]] = str
			}
		}
	}

	return core.NewSecrets(salt, digests), nil
}

// Provision stores digests under their references. The salt is written
// only when the key does not exist yet, so an existing salt is never
// silently replaced and previously provisioned digests stay valid.
func (s *RedisSource) Provision(ctx context.Context, salt string, digests map[string]string) error {
	if salt == "" {
		return errors.New("refusing to provision with an empty salt")
	}

	ok, err := s.client.SetNX(ctx, s.saltKey, salt, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}
	if !ok {
		current, err := s.client.Get(ctx, s.saltKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read salt: %w", err)
		}
		if current != salt {
			return errors.New("a different salt is already provisioned")
		}
	}

	if len(digests) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(digests))
	for ref, digest := range digests {
		values[ref] = digest
	}
	if err := s.client.HSet(ctx, s.digestsKey, values).Err(); err != nil {
		return fmt.Errorf("failed to store digests: %w", err)
	}

	return nil
}
