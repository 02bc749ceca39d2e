// Package redis implements indexstore.Store over Redis, using
// github.com/redis/go-redis/v9 for the string/set primitives, TTL, and
// pipelining the Scanner needs.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/indexstore"
)

// Store implements indexstore.Store over a single Redis connection.
type Store struct {
	client *redis.Client
}

// Config configures the Redis connection.
type Config struct {
	URL string
}

// New parses cfg.URL (a redis:// connection string, the REDIS_URL
// environment value) and returns a ready Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, apperror.Wrap(apperror.Backend, "parse redis url failed", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, apperror.Wrap(apperror.Backend, "redis ping failed", err)
	}

	return &Store{client: client}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperror.Wrap(apperror.Backend, "redis ping failed", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperror.Wrap(apperror.Backend, "redis set failed", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperror.Wrap(apperror.Backend, "redis get failed", err)
	}
	return val, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return apperror.Wrap(apperror.Backend, "redis del failed", err)
	}
	return nil
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SAdd(ctx, key, args...).Err(); err != nil {
		return apperror.Wrap(apperror.Backend, "redis sadd failed", err)
	}
	return nil
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SRem(ctx, key, args...).Err(); err != nil {
		return apperror.Wrap(apperror.Backend, "redis srem failed", err)
	}
	return nil
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, apperror.Wrap(apperror.Backend, "redis smembers failed", err)
	}
	return members, nil
}

// pipeliner adapts redis.Pipeliner to indexstore.Pipeliner, queuing
// writes without inspecting their results until Pipeline's Exec.
type pipeliner struct {
	pipe redis.Pipeliner
}

func (p *pipeliner) Set(key, value string, ttl time.Duration) {
	p.pipe.Set(context.Background(), key, value, ttl)
}

func (p *pipeliner) Delete(key string) {
	p.pipe.Del(context.Background(), key)
}

func (p *pipeliner) SetAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	p.pipe.SAdd(context.Background(), key, args...)
}

func (p *pipeliner) SetRemove(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	p.pipe.SRem(context.Background(), key, args...)
}

func (s *Store) Pipeline(ctx context.Context, fn func(indexstore.Pipeliner) error) error {
	pipe := s.client.Pipeline()
	if err := fn(&pipeliner{pipe: pipe}); err != nil {
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return apperror.Wrap(apperror.Backend, "redis pipeline exec failed", err)
	}
	return nil
}

var _ indexstore.Store = (*Store)(nil)
