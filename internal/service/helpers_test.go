package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"udhaar/backend/internal/cache"
	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
	"udhaar/backend/internal/store/memory"
)

const testOrg = "org1"

var ist = time.FixedZone("IST", 5*3600+1800)

// 01:30 on 11 March in the shop's zone.
var testNow = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(repo store.Repository, stats ...statsCacheOption) *Service {
	opts := Options{
		Location: ist,
		Retry:    RetryPolicy{MaxAttempts: 8},
		Clock:    func() time.Time { return testNow },
	}
	svc := New(repo, nil, opts)
	for _, apply := range stats {
		apply(svc)
	}
	return svc
}

type statsCacheOption func(*Service)

func seedProducts(t *testing.T, repo *memory.Store, products ...domain.Product) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx, store.WriteSet{Products: products}))
}

func seedCustomer(t *testing.T, repo *memory.Store, id string) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx, store.WriteSet{
		Customer: &domain.Customer{OrgID: testOrg, ID: id, Name: "Ramesh Kumar", Phone: "9845012345"},
	}))
}

func product(id string, stock int, price, cost string) domain.Product {
	return domain.Product{
		OrgID:        testOrg,
		ID:           id,
		Name:         "Product " + id,
		CurrentStock: stock,
		SellingPrice: dec(price),
		CostPrice:    dec(cost),
	}
}

type line struct {
	productID   string
	qty         int
	price, cost string
}

// draft builds a consistent sale draft. Credit drafts are left fully unpaid.
func draft(mode domain.PaymentMode, customerID string, lines ...line) domain.SaleDraft {
	d := domain.SaleDraft{PaymentMode: mode, CustomerID: customerID}
	for _, l := range lines {
		q := decimal.NewFromInt(int64(l.qty))
		item := domain.SaleDraftItem{
			ProductID:     l.productID,
			Quantity:      l.qty,
			SellingPrice:  dec(l.price),
			UnitCost:      dec(l.cost),
			LineTotal:     dec(l.price).Mul(q),
			LineCostTotal: dec(l.cost).Mul(q),
		}
		d.Items = append(d.Items, item)
		d.SubTotal = d.SubTotal.Add(item.LineTotal)
		d.TotalCost = d.TotalCost.Add(item.LineCostTotal)
	}
	d.GrandTotal = d.SubTotal
	if mode != domain.PaymentCredit {
		d.TotalPaid = d.GrandTotal
	}
	return d
}

// hookRepo wraps a repository to count attempts and to inject behaviour just
// before a commit.
type hookRepo struct {
	store.Repository
	begins atomic.Int32

	// beforeFirstCommit runs once, before the first Commit reaches the store.
	beforeFirstCommit func()
	once              sync.Once

	// commitErr, when set, replaces every commit with this error.
	commitErr error
}

func (r *hookRepo) Begin(ctx context.Context) (store.Txn, error) {
	r.begins.Add(1)
	tx, err := r.Repository.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &hookTxn{Txn: tx, repo: r}, nil
}

type hookTxn struct {
	store.Txn
	repo *hookRepo
}

func (t *hookTxn) Commit(ctx context.Context, w store.WriteSet) error {
	if t.repo.beforeFirstCommit != nil {
		t.repo.once.Do(t.repo.beforeFirstCommit)
	}
	if t.repo.commitErr != nil {
		_ = t.Txn.Rollback(ctx)
		return t.repo.commitErr
	}
	return t.Txn.Commit(ctx, w)
}

// statsHookRepo runs afterDailyRead once, between a committed daily stats
// read and the caller receiving its result.
type statsHookRepo struct {
	store.Repository
	afterDailyRead func()
	once           sync.Once
}

func (r *statsHookRepo) GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error) {
	bucket, err := r.Repository.GetDailyStats(ctx, orgID, date)
	if r.afterDailyRead != nil {
		r.once.Do(r.afterDailyRead)
	}
	return bucket, err
}

// unwritableCache refuses every write, like a Redis that went away after the
// last read, and remembers invalidations.
type unwritableCache struct {
	*cache.LocalStatsCache
	mu          sync.Mutex
	invalidated []string
}

func (c *unwritableCache) SetDaily(context.Context, domain.DailyStats, time.Duration) error {
	return errors.New("cache unavailable")
}

func (c *unwritableCache) SetMonthly(context.Context, domain.MonthlyStats, time.Duration) error {
	return errors.New("cache unavailable")
}

func (c *unwritableCache) Invalidate(ctx context.Context, orgID string, date string, month string) error {
	c.mu.Lock()
	c.invalidated = append(c.invalidated, orgID+"/"+date+"/"+month)
	c.mu.Unlock()
	return c.LocalStatsCache.Invalidate(ctx, orgID, date, month)
}

func withStatsCache(c cache.StatsCache) statsCacheOption {
	return func(s *Service) { s.stats = c }
}
