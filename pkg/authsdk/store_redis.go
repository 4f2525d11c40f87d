package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session under one redis key, for clients that must
// survive restarts or share a session between processes.
type RedisStore struct {
	Client redis.UniversalClient
	Key    string

	// TTL expires the stored session; zero keeps it until cleared. Set it to
	// the server's refresh token lifetime to avoid holding dead sessions.
	TTL time.Duration
}

// NewRedisStore returns a store writing to key.
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, Key: key, TTL: ttl}
}

func (r *RedisStore) Get(ctx context.Context) (*Session, error) {
	raw, err := r.Client.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authsdk: redis get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("authsdk: decode stored session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Set(ctx context.Context, s *Session) error {
	if s == nil {
		if err := r.Client.Del(ctx, r.Key).Err(); err != nil {
			return fmt.Errorf("authsdk: redis del: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, r.Key, raw, r.TTL).Err(); err != nil {
		return fmt.Errorf("authsdk: redis set: %w", err)
	}
	return nil
}
