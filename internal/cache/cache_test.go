package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udhaar/backend/internal/domain"
)

func TestNoopStatsCacheAlwaysMisses(t *testing.T) {
	var c StatsCache = NoopStatsCache{}
	ctx := context.Background()

	require.NoError(t, c.SetDaily(ctx, domain.DailyStats{OrgID: "org1", Date: "2024-03-10"}, time.Minute))
	bucket, ok, err := c.GetDaily(ctx, "org1", "2024-03-10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, bucket)
}

func TestKeysAreScopedByOrganisation(t *testing.T) {
	assert.Equal(t, "stats:daily:org1:2024-03-10", DailyKey("org1", "2024-03-10"))
	assert.Equal(t, "stats:monthly:org1:2024-03", MonthlyKey("org1", "2024-03"))
	assert.NotEqual(t, DailyKey("org1", "2024-03-10"), DailyKey("org2", "2024-03-10"))
}

func TestLocalStatsCacheKeepsNewestVersion(t *testing.T) {
	c := NewLocalStatsCache()
	ctx := context.Background()

	committed := domain.DailyStats{OrgID: "org1", Date: "2024-03-10", Version: 2}
	committed.TotalBills = 2
	require.NoError(t, c.SetDaily(ctx, committed, time.Minute))

	stale := domain.DailyStats{OrgID: "org1", Date: "2024-03-10", Version: 1}
	stale.TotalBills = 1
	require.NoError(t, c.SetDaily(ctx, stale, time.Minute))

	got, ok, err := c.GetDaily(ctx, "org1", "2024-03-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.TotalBills)

	newer := domain.MonthlyStats{OrgID: "org1", Month: "2024-03", Version: 5}
	require.NoError(t, c.SetMonthly(ctx, domain.MonthlyStats{OrgID: "org1", Month: "2024-03", Version: 4}, time.Minute))
	require.NoError(t, c.SetMonthly(ctx, newer, time.Minute))
	month, ok, _ := c.GetMonthly(ctx, "org1", "2024-03")
	require.True(t, ok)
	assert.Equal(t, int64(5), month.Version)

	require.NoError(t, c.Invalidate(ctx, "org1", "2024-03-10", "2024-03"))
	_, ok, _ = c.GetDaily(ctx, "org1", "2024-03-10")
	assert.False(t, ok)
}

func TestLocalStatsCacheExpires(t *testing.T) {
	c := NewLocalStatsCache()
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetDaily(ctx, domain.DailyStats{OrgID: "org1", Date: "2024-03-10", Version: 3}, 30*time.Second))
	now = now.Add(31 * time.Second)
	_, ok, _ := c.GetDaily(ctx, "org1", "2024-03-10")
	assert.False(t, ok)

	// An expired entry no longer blocks older versions.
	require.NoError(t, c.SetDaily(ctx, domain.DailyStats{OrgID: "org1", Date: "2024-03-10", Version: 1}, 30*time.Second))
	got, ok, _ := c.GetDaily(ctx, "org1", "2024-03-10")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Version)
}

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("UDHAAR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set UDHAAR_TEST_REDIS_ADDR to run redis cache test")
	}
	ctx := context.Background()
	c := NewRedisStatsCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	orgID := "org-cache-" + time.Now().Format("150405.000000")
	daily := domain.DailyStats{ID: orgID + "_2024-03-10", OrgID: orgID, Date: "2024-03-10", Version: 3}
	daily.TotalSalesAmount = decimal.RequireFromString("1234.50")
	daily.TotalBills = 4

	require.NoError(t, c.SetDaily(ctx, daily, time.Minute))
	got, ok, err := c.GetDaily(ctx, orgID, "2024-03-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.TotalSalesAmount.Equal(daily.TotalSalesAmount))
	assert.Equal(t, 4, got.TotalBills)

	older := daily
	older.Version = 2
	older.TotalBills = 3
	require.NoError(t, c.SetDaily(ctx, older, time.Minute))
	got, _, err = c.GetDaily(ctx, orgID, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalBills)

	require.NoError(t, c.Invalidate(ctx, orgID, "2024-03-10", "2024-03"))
	_, ok, err = c.GetDaily(ctx, orgID, "2024-03-10")
	require.NoError(t, err)
	assert.False(t, ok)
}
