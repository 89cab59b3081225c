package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/studyplan-backend/internal/config"
)

// RedisNonceStore remembers result-link nonces that have been redeemed.
type RedisNonceStore struct {
	rdb *redis.Client
}

// NewRedisNonceStore creates a new RedisNonceStore.
func NewRedisNonceStore(rdb *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb}
}

// Claim marks nonce as used for ttl. It reports false if the nonce was
// already claimed.
func (s *RedisNonceStore) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.ResultLinkNonceKey(nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return ok, nil
}
