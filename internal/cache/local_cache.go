package cache

import (
	"context"
	"sync"
	"time"

	"udhaar/backend/internal/domain"
)

type LocalStatsCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

type localEntry struct {
	version   int64
	value     any
	expiresAt time.Time
}

func NewLocalStatsCache() *LocalStatsCache {
	return &LocalStatsCache{entries: make(map[string]localEntry), now: time.Now}
}

func (c *LocalStatsCache) GetDaily(_ context.Context, orgID string, date string) (*domain.DailyStats, bool, error) {
	value, ok := c.get(DailyKey(orgID, date))
	if !ok {
		return nil, false, nil
	}
	bucket := value.(domain.DailyStats)
	return &bucket, true, nil
}

func (c *LocalStatsCache) SetDaily(_ context.Context, bucket domain.DailyStats, ttl time.Duration) error {
	c.set(DailyKey(bucket.OrgID, bucket.Date), bucket.Version, bucket, ttl)
	return nil
}

func (c *LocalStatsCache) GetMonthly(_ context.Context, orgID string, month string) (*domain.MonthlyStats, bool, error) {
	value, ok := c.get(MonthlyKey(orgID, month))
	if !ok {
		return nil, false, nil
	}
	bucket := value.(domain.MonthlyStats)
	return &bucket, true, nil
}

func (c *LocalStatsCache) SetMonthly(_ context.Context, bucket domain.MonthlyStats, ttl time.Duration) error {
	c.set(MonthlyKey(bucket.OrgID, bucket.Month), bucket.Version, bucket, ttl)
	return nil
}

func (c *LocalStatsCache) Invalidate(_ context.Context, orgID string, date string, month string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, DailyKey(orgID, date))
	delete(c.entries, MonthlyKey(orgID, month))
	return nil
}

func (c *LocalStatsCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *LocalStatsCache) set(key string, version int64, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if held, ok := c.entries[key]; ok && now.Before(held.expiresAt) && held.version >= version {
		return
	}
	c.entries[key] = localEntry{version: version, value: value, expiresAt: now.Add(ttl)}
}
