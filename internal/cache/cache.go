package cache

import (
	"context"
	"time"

	"udhaar/backend/internal/domain"
)

// StatsCache holds read-through copies of the rollup buckets. Set keeps
// whichever bucket carries the higher Version, so a reader that loaded a
// bucket before a commit cannot overwrite the one the writer published.
type StatsCache interface {
	GetDaily(ctx context.Context, orgID string, date string) (*domain.DailyStats, bool, error)
	SetDaily(ctx context.Context, bucket domain.DailyStats, ttl time.Duration) error
	GetMonthly(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, bool, error)
	SetMonthly(ctx context.Context, bucket domain.MonthlyStats, ttl time.Duration) error
	Invalidate(ctx context.Context, orgID string, date string, month string) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) GetDaily(_ context.Context, _ string, _ string) (*domain.DailyStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) SetDaily(_ context.Context, _ domain.DailyStats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) GetMonthly(_ context.Context, _ string, _ string) (*domain.MonthlyStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) SetMonthly(_ context.Context, _ domain.MonthlyStats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) Invalidate(_ context.Context, _ string, _ string, _ string) error {
	return nil
}

func DailyKey(orgID string, date string) string {
	return "stats:daily:" + orgID + ":" + date
}

func MonthlyKey(orgID string, month string) string {
	return "stats:monthly:" + orgID + ":" + month
}
