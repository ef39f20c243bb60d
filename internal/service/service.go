package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"udhaar/backend/internal/cache"
	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/posting"
	"udhaar/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// actorName is what createdBy records; unauthenticated callers are "system".
func actorName(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return "system"
	}
	return actor.Username
}

type Options struct {
	Location *time.Location
	Retry    RetryPolicy
	StatsTTL time.Duration
	Logger   logrus.FieldLogger
	Clock    func() time.Time
}

type Service struct {
	repo     store.Repository
	planner  *posting.Planner
	stats    cache.StatsCache
	statsTTL time.Duration
	retry    RetryPolicy
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(repo store.Repository, stats cache.StatsCache, opts Options) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = 30 * time.Second
	}
	if opts.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		opts.Logger = discard
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Service{
		repo:     repo,
		planner:  posting.NewPlanner(opts.Location),
		stats:    stats,
		statsTTL: opts.StatsTTL,
		retry:    opts.Retry,
		validate: newValidator(),
		log:      opts.Logger.WithField("module", "service"),
		now:      func() time.Time { return opts.Clock().UTC() },
	}
}

func (s *Service) Today() string {
	return s.planner.Day(s.now())
}

func (s *Service) GetProduct(ctx context.Context, orgID string, productID string) (domain.Product, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, orgID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, &posting.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context, orgID string) ([]domain.Product, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, orgID)
}

func (s *Service) ListLowStockProducts(ctx context.Context, orgID string) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	low := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) ListStockMovements(ctx context.Context, orgID string, productID string, limit int) ([]domain.StockMovement, error) {
	if _, err := s.GetProduct(ctx, orgID, productID); err != nil {
		return nil, err
	}
	return s.repo.ListStockMovements(ctx, orgID, productID, clampLimit(limit))
}

func (s *Service) GetCustomer(ctx context.Context, orgID string, customerID string) (domain.Customer, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, orgID, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Customer{}, &posting.CustomerNotFoundError{CustomerID: customerID}
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, orgID string) ([]domain.Customer, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, orgID)
}

func (s *Service) ListCustomerTransactions(ctx context.Context, orgID string, customerID string) ([]domain.CustomerTransaction, error) {
	if _, err := s.GetCustomer(ctx, orgID, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListCustomerTransactions(ctx, orgID, customerID)
}

func (s *Service) ReconcileCustomerLedger(ctx context.Context, orgID string, customerID string) (domain.LedgerReconciliation, error) {
	customer, err := s.GetCustomer(ctx, orgID, customerID)
	if err != nil {
		return domain.LedgerReconciliation{}, err
	}
	entries, err := s.repo.ListCustomerTransactions(ctx, orgID, customerID)
	if err != nil {
		return domain.LedgerReconciliation{}, err
	}

	replayed := posting.ReplayLedger(entries)
	result := domain.LedgerReconciliation{
		CustomerID:  customerID,
		TotalCredit: customer.TotalCredit,
		Replayed:    replayed,
		Entries:     len(entries),
		Consistent:  replayed.Equal(customer.TotalCredit),
	}
	if !result.Consistent {
		s.log.WithFields(logrus.Fields{
			"func":         "ReconcileCustomerLedger",
			"org":          orgID,
			"customer_id":  customerID,
			"total_credit": customer.TotalCredit.String(),
			"replayed":     replayed.String(),
		}).Warn("customer ledger drift")
	}
	return result, nil
}

func (s *Service) GetSale(ctx context.Context, orgID string, saleID string) (domain.Sale, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, orgID, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, orgID string, date string, limit int) ([]domain.Sale, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	if date == "" {
		date = s.Today()
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.planner.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidTransaction)
	}
	return s.repo.ListSales(ctx, orgID, day.UTC(), day.AddDate(0, 0, 1).UTC(), clampLimit(limit))
}

func requireOrg(orgID string) error {
	if strings.TrimSpace(orgID) == "" {
		return fmt.Errorf("%w: organisation is required", store.ErrInvalidTransaction)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
