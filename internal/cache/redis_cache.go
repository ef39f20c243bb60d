package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"udhaar/backend/internal/domain"
)

const maxWatchRetries = 3

type RedisStatsCache struct {
	client *redis.Client
}

func NewRedisStatsCache(addr string, password string, db int) *RedisStatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStatsCache{client: client}
}

func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

func (c *RedisStatsCache) GetDaily(ctx context.Context, orgID string, date string) (*domain.DailyStats, bool, error) {
	var bucket domain.DailyStats
	ok, err := c.get(ctx, DailyKey(orgID, date), &bucket)
	if !ok || err != nil {
		return nil, false, err
	}
	return &bucket, true, nil
}

func (c *RedisStatsCache) SetDaily(ctx context.Context, bucket domain.DailyStats, ttl time.Duration) error {
	return c.setIfNewer(ctx, DailyKey(bucket.OrgID, bucket.Date), bucket.Version, bucket, ttl)
}

func (c *RedisStatsCache) GetMonthly(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, bool, error) {
	var bucket domain.MonthlyStats
	ok, err := c.get(ctx, MonthlyKey(orgID, month), &bucket)
	if !ok || err != nil {
		return nil, false, err
	}
	return &bucket, true, nil
}

func (c *RedisStatsCache) SetMonthly(ctx context.Context, bucket domain.MonthlyStats, ttl time.Duration) error {
	return c.setIfNewer(ctx, MonthlyKey(bucket.OrgID, bucket.Month), bucket.Version, bucket, ttl)
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, orgID string, date string, month string) error {
	return c.client.Del(ctx, DailyKey(orgID, date), MonthlyKey(orgID, month)).Err()
}

func (c *RedisStatsCache) get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// setIfNewer writes value unless the key already holds the same or a newer
// version. WATCH makes the compare and the write one step.
func (c *RedisStatsCache) setIfNewer(ctx context.Context, key string, version int64, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var held struct {
				Version int64 `json:"version"`
			}
			if json.Unmarshal(raw, &held) == nil && held.Version >= version {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = c.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}
