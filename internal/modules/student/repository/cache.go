package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const distinctKeyPrefix = "students:distinct:"

// DistinctCache holds sorted distinct values per field.
type DistinctCache interface {
	Get(ctx context.Context, field string) ([]string, bool, error)
	Set(ctx context.Context, field string, values []string) error
	Invalidate(ctx context.Context) error
}

type redisDistinctCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDistinctCache(rdb *redis.Client, ttl time.Duration) DistinctCache {
	return &redisDistinctCache{rdb: rdb, ttl: ttl}
}

func (c *redisDistinctCache) Get(ctx context.Context, field string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, distinctKeyPrefix+field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false, fmt.Errorf("decode cached %s values: %w", field, err)
	}
	return values, true, nil
}

func (c *redisDistinctCache) Set(ctx context.Context, field string, values []string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, distinctKeyPrefix+field, raw, c.ttl).Err()
}

func (c *redisDistinctCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(DistinctFields))
	for field := range DistinctFields {
		keys = append(keys, distinctKeyPrefix+field)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
