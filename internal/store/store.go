package store

import (
	"context"
	"errors"
	"time"

	"udhaar/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrConflict is returned by Txn.Commit when a document in the write set
	// was changed by another transaction after it was read.
	ErrConflict  = errors.New("write conflict")
	ErrTxnClosed = errors.New("transaction already finished")
)

// WriteSet is everything one unit of work persists. Each mutable document
// carries the Version it had when read; Version 0 means the document did not
// exist and must be created. Stores persist Version+1.
type WriteSet struct {
	Sale                 *domain.Sale
	Products             []domain.Product
	StockMovements       []domain.StockMovement
	DailyStats           *domain.DailyStats
	MonthlyStats         *domain.MonthlyStats
	Customer             *domain.Customer
	CustomerTransactions []domain.CustomerTransaction
	InvoiceCounter       *domain.InvoiceCounter
}

func (w WriteSet) Empty() bool {
	return w.Sale == nil && len(w.Products) == 0 && len(w.StockMovements) == 0 &&
		w.DailyStats == nil && w.MonthlyStats == nil && w.Customer == nil &&
		len(w.CustomerTransactions) == 0 && w.InvoiceCounter == nil
}

// Txn is a single optimistic attempt. All reads happen before Commit; a Txn
// cannot be read from once Commit or Rollback has been called.
type Txn interface {
	GetProducts(ctx context.Context, orgID string, ids []string) (map[string]domain.Product, error)
	GetCustomer(ctx context.Context, orgID string, id string) (*domain.Customer, error)
	// The remaining reads return nil, nil when nothing matches.
	GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error)
	GetMonthlyStats(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, error)
	GetInvoiceCounter(ctx context.Context, orgID string, day string) (*domain.InvoiceCounter, error)
	LatestSaleSince(ctx context.Context, orgID string, since time.Time) (*domain.Sale, error)

	Commit(ctx context.Context, writes WriteSet) error
	Rollback(ctx context.Context) error
}

type Repository interface {
	Begin(ctx context.Context) (Txn, error)

	GetProduct(ctx context.Context, orgID string, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, orgID string) ([]domain.Product, error)
	ListStockMovements(ctx context.Context, orgID string, productID string, limit int) ([]domain.StockMovement, error)

	GetCustomer(ctx context.Context, orgID string, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, orgID string) ([]domain.Customer, error)
	ListCustomerTransactions(ctx context.Context, orgID string, customerID string) ([]domain.CustomerTransaction, error)

	GetSale(ctx context.Context, orgID string, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, orgID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)

	GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error)
	GetMonthlyStats(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, error)
}

func DailyStatsID(orgID string, date string) string {
	return orgID + "_" + date
}

func MonthlyStatsID(orgID string, month string) string {
	return orgID + "_" + month
}

func InvoiceCounterID(orgID string, day string) string {
	return orgID + "_" + day
}
