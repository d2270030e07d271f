package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

// set helpers, used for the tenant index

func (s *Store) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.client.SAdd(ctx, key, members...).Err()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

// list helpers, used for the job queue

func (s *Store) ListPush(ctx context.Context, key string, value interface{}) error {
	return s.client.LPush(ctx, key, value).Err()
}

// ListPopBlocking pops from the tail, waiting up to timeout. ok is false on timeout.
func (s *Store) ListPopBlocking(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	res, err := s.client.BRPop(ctx, timeout, key).Result()
	if s.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BRPop returns [key, value]
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}
