package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "drinks-api:jwks:"

// RedisKeySetStore shares the raw JWKS document between replicas through Redis
type RedisKeySetStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisKeySetStore creates a store keyed by the JWKS URL
func NewRedisKeySetStore(client redis.UniversalClient, jwksURL string) *RedisKeySetStore {
	return &RedisKeySetStore{
		client: client,
		key:    redisKeyPrefix + jwksURL,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers a PING
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Get returns the stored document or ErrKeySetNotCached
func (s *RedisKeySetStore) Get(ctx context.Context) ([]byte, error) {
	document, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeySetNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return document, nil
}

// Set stores the document with the given expiry
func (s *RedisKeySetStore) Set(ctx context.Context, document []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key, document, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete removes the stored document
func (s *RedisKeySetStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}
