package auth

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks terminated sessions. A token whose id is revoked
// must be rejected immediately, before its expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationStore implements RevocationStore on Redis. Entries expire
// with the token they revoke, so the set stays bounded.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore connects to Redis using REDIS_ADDR, REDIS_PASSWORD
// and REDIS_DB and verifies the connection.
func NewRedisRevocationStore(ctx context.Context) (*RedisRevocationStore, error) {
	dbNum, err := strconv.Atoi(os.Getenv("REDIS_DB"))
	if err != nil {
		dbNum = 0
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       dbNum,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisRevocationStore{client: client}, nil
}

func revocationKey(tokenID string) string {
	return "session:revoked:" + tokenID
}

// Revoke marks a session token as terminated until its natural expiry.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err()
}

// IsRevoked checks whether a session token has been terminated.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
