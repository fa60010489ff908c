// Package session tracks logged-in members. Tokens are opaque random ids
// mapped to member ids in Redis with a TTL.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store maps session tokens to member ids.
type Store interface {
	Create(ctx context.Context, memberID string) (string, error)
	// MemberID resolves a token. The bool is false for unknown or expired
	// tokens; that is not an error.
	MemberID(ctx context.Context, token string) (string, bool, error)
	Delete(ctx context.Context, token string) error
	// Ping reports session backend reachability for health checks.
	Ping(ctx context.Context) error
}

const keyPrefix = "session:"

// RedisStore keeps sessions in Redis with TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

func (s *RedisStore) Create(ctx context.Context, memberID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+token, memberID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) MemberID(ctx context.Context, token string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+token).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
