package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis is a Redis-backed Store. Credentials are kept as a JSON blob under a
// single key with no TTL: the refresh token has no client-known lifetime, so
// eviction is left to the operator.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis returns a store persisting under the given key.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

// GetCredentials retrieves the stored credentials.
func (s *Redis) GetCredentials(ctx context.Context) (*Credentials, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: loading credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("store: decoding credentials: %w", err)
	}
	return &creds, nil
}

// PutCredentials replaces the stored credentials.
func (s *Redis) PutCredentials(ctx context.Context, creds *Credentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("store: encoding credentials: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("store: saving credentials: %w", err)
	}
	return nil
}
