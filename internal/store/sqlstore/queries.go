package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

func (s *Store) GetProduct(ctx context.Context, orgID string, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, orgID string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 32)
	err := s.db.SelectContext(ctx, &products, s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE org_id = ? ORDER BY name ASC, id ASC`), orgID)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListStockMovements(ctx context.Context, orgID string, productID string, limit int) ([]domain.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE org_id = ? AND product_id = ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}
	movements := make([]domain.StockMovement, 0, 16)
	if err := s.db.SelectContext(ctx, &movements, s.db.Rebind(query), orgID, productID); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) GetCustomer(ctx context.Context, orgID string, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.GetContext(ctx, &c, s.db.Rebind(`SELECT `+customerColumns+` FROM customers WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, orgID string) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, 32)
	err := s.db.SelectContext(ctx, &customers, s.db.Rebind(`SELECT `+customerColumns+` FROM customers WHERE org_id = ? ORDER BY name ASC, id ASC`), orgID)
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) ListCustomerTransactions(ctx context.Context, orgID string, customerID string) ([]domain.CustomerTransaction, error) {
	entries := make([]domain.CustomerTransaction, 0, 16)
	err := s.db.SelectContext(ctx, &entries, s.db.Rebind(`
		SELECT `+ledgerColumns+`
		FROM customer_transactions
		WHERE org_id = ? AND customer_id = ?
		ORDER BY sequence ASC
	`), orgID, customerID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetSale(ctx context.Context, orgID string, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, s.db.Rebind(`SELECT `+saleColumns+` FROM sales WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	sales := []domain.Sale{sale}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, orgID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE org_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, invoice_number DESC`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	sales := make([]domain.Sale, 0, 32)
	if err := s.db.SelectContext(ctx, &sales, s.db.Rebind(query), orgID, from.UTC(), to.UTC()); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) attachItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sales))
	index := make(map[string]int, len(sales))
	for i, sale := range sales {
		ids = append(ids, sale.ID)
		index[sale.ID] = i
	}

	query, args, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return err
	}
	var items []domain.SaleLineItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.SaleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return nil
}

func (s *Store) GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error) {
	return getDailyStats(ctx, s.db, orgID, date)
}

func (s *Store) GetMonthlyStats(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, error) {
	return getMonthlyStats(ctx, s.db, orgID, month)
}

func getDailyStats(ctx context.Context, q sqlx.ExtContext, orgID string, date string) (*domain.DailyStats, error) {
	var bucket domain.DailyStats
	err := sqlx.GetContext(ctx, q, &bucket, q.Rebind(`SELECT `+statsColumns+` FROM daily_stats WHERE id = ?`), store.DailyStatsID(orgID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &bucket, nil
}

func getMonthlyStats(ctx context.Context, q sqlx.ExtContext, orgID string, month string) (*domain.MonthlyStats, error) {
	var bucket domain.MonthlyStats
	err := sqlx.GetContext(ctx, q, &bucket, q.Rebind(`SELECT `+statsColumns+` FROM monthly_stats WHERE id = ?`), store.MonthlyStatsID(orgID, month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &bucket, nil
}
