package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

// Store keeps every document in process. Reads copy documents out under the
// read lock; Commit checks versions and applies the whole write set under the
// write lock, so no lock is held between a transaction's reads and its commit.
type Store struct {
	mu             sync.RWMutex
	products       map[string]domain.Product
	customers      map[string]domain.Customer
	sales          map[string]domain.Sale
	invoices       map[string]string
	movements      []domain.StockMovement
	dailyStats     map[string]domain.DailyStats
	monthlyStats   map[string]domain.MonthlyStats
	counters       map[string]domain.InvoiceCounter
	customerLedger map[string][]domain.CustomerTransaction
}

func New() *Store {
	return &Store{
		products:       make(map[string]domain.Product),
		customers:      make(map[string]domain.Customer),
		sales:          make(map[string]domain.Sale),
		invoices:       make(map[string]string),
		dailyStats:     make(map[string]domain.DailyStats),
		monthlyStats:   make(map[string]domain.MonthlyStats),
		counters:       make(map[string]domain.InvoiceCounter),
		customerLedger: make(map[string][]domain.CustomerTransaction),
	}
}

func key(orgID string, id string) string {
	return orgID + "/" + id
}

func (s *Store) Begin(_ context.Context) (store.Txn, error) {
	return &txn{s: s}, nil
}

type txn struct {
	s    *Store
	done bool
}

func (t *txn) GetProducts(_ context.Context, orgID string, ids []string) (map[string]domain.Product, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[key(orgID, id)]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *txn) GetCustomer(ctx context.Context, orgID string, id string) (*domain.Customer, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	return t.s.GetCustomer(ctx, orgID, id)
}

func (t *txn) GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	return t.s.GetDailyStats(ctx, orgID, date)
}

func (t *txn) GetMonthlyStats(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	return t.s.GetMonthlyStats(ctx, orgID, month)
}

func (t *txn) GetInvoiceCounter(_ context.Context, orgID string, day string) (*domain.InvoiceCounter, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	counter, ok := t.s.counters[store.InvoiceCounterID(orgID, day)]
	if !ok {
		return nil, nil
	}
	return &counter, nil
}

func (t *txn) LatestSaleSince(_ context.Context, orgID string, since time.Time) (*domain.Sale, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var latest *domain.Sale
	for _, sale := range t.s.sales {
		if sale.OrgID != orgID || sale.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || compareSaleRecency(sale, *latest) > 0 {
			candidate := sale
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := cloneSale(*latest)
	return &clone, nil
}

func (t *txn) Rollback(_ context.Context) error {
	t.done = true
	return nil
}

func (t *txn) Commit(_ context.Context, w store.WriteSet) error {
	if t.done {
		return store.ErrTxnClosed
	}
	t.done = true

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersions(w); err != nil {
		return err
	}

	for _, p := range w.Products {
		p.Version++
		s.products[key(p.OrgID, p.ID)] = p
	}
	if w.Customer != nil {
		c := *w.Customer
		c.Version++
		s.customers[key(c.OrgID, c.ID)] = c
	}
	if w.DailyStats != nil {
		d := *w.DailyStats
		d.Version++
		s.dailyStats[d.ID] = d
	}
	if w.MonthlyStats != nil {
		m := *w.MonthlyStats
		m.Version++
		s.monthlyStats[m.ID] = m
	}
	if w.InvoiceCounter != nil {
		c := *w.InvoiceCounter
		c.Version++
		s.counters[c.ID] = c
	}
	if w.Sale != nil {
		sale := cloneSale(*w.Sale)
		s.sales[key(sale.OrgID, sale.ID)] = sale
		s.invoices[key(sale.OrgID, sale.InvoiceNumber)] = sale.ID
	}
	s.movements = append(s.movements, w.StockMovements...)
	for _, entry := range w.CustomerTransactions {
		k := key(entry.OrgID, entry.CustomerID)
		s.customerLedger[k] = append(s.customerLedger[k], entry)
	}
	return nil
}

func (s *Store) checkVersions(w store.WriteSet) error {
	for _, p := range w.Products {
		if p.CurrentStock < 0 {
			return store.ErrInsufficientStock
		}
		current, ok := s.products[key(p.OrgID, p.ID)]
		if !versionMatches(ok, current.Version, p.Version) {
			return store.ErrConflict
		}
	}
	if c := w.Customer; c != nil {
		current, ok := s.customers[key(c.OrgID, c.ID)]
		if !versionMatches(ok, current.Version, c.Version) {
			return store.ErrConflict
		}
	}
	if d := w.DailyStats; d != nil {
		current, ok := s.dailyStats[d.ID]
		if !versionMatches(ok, current.Version, d.Version) {
			return store.ErrConflict
		}
	}
	if m := w.MonthlyStats; m != nil {
		current, ok := s.monthlyStats[m.ID]
		if !versionMatches(ok, current.Version, m.Version) {
			return store.ErrConflict
		}
	}
	if c := w.InvoiceCounter; c != nil {
		current, ok := s.counters[c.ID]
		if !versionMatches(ok, current.Version, c.Version) {
			return store.ErrConflict
		}
	}
	if sale := w.Sale; sale != nil {
		if _, taken := s.invoices[key(sale.OrgID, sale.InvoiceNumber)]; taken {
			return store.ErrConflict
		}
		if _, exists := s.sales[key(sale.OrgID, sale.ID)]; exists {
			return store.ErrConflict
		}
	}
	return nil
}

// versionMatches reports whether a document read at version read is still
// current. Version 0 means the document was absent when read.
func versionMatches(exists bool, current int64, read int64) bool {
	if read == 0 {
		return !exists
	}
	return exists && current == read
}

func (s *Store) GetProduct(_ context.Context, orgID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[key(orgID, id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, orgID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) ListStockMovements(_ context.Context, orgID string, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockMovement, 0, 16)
	for i := len(s.movements) - 1; i >= 0; i-- {
		mv := s.movements[i]
		if mv.OrgID != orgID || mv.ProductID != productID {
			continue
		}
		out = append(out, mv)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, orgID string, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[key(orgID, id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context, orgID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) ListCustomerTransactions(_ context.Context, orgID string, customerID string) ([]domain.CustomerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := slices.Clone(s.customerLedger[key(orgID, customerID)])
	slices.SortFunc(entries, func(a, b domain.CustomerTransaction) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return entries, nil
}

func (s *Store) GetSale(_ context.Context, orgID string, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[key(orgID, id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneSale(sale)
	return &clone, nil
}

func (s *Store) ListSales(_ context.Context, orgID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, 32)
	for _, sale := range s.sales {
		if sale.OrgID != orgID || sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		return compareSaleRecency(b, a)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetDailyStats(_ context.Context, orgID string, date string) (*domain.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.dailyStats[store.DailyStatsID(orgID, date)]
	if !ok {
		return nil, nil
	}
	return &bucket, nil
}

func (s *Store) GetMonthlyStats(_ context.Context, orgID string, month string) (*domain.MonthlyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.monthlyStats[store.MonthlyStatsID(orgID, month)]
	if !ok {
		return nil, nil
	}
	return &bucket, nil
}

func compareSaleRecency(a, b domain.Sale) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.InvoiceNumber, b.InvoiceNumber))
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Items = slices.Clone(sale.Items)
	return sale
}
