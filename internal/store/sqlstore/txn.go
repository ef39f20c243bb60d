package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

const (
	productColumns = `org_id, id, name, sku, current_stock, low_stock_threshold, cost_price, selling_price,
		total_purchased, total_sold, total_revenue, total_cost, last_sale_at, version, created_at, updated_at`
	customerColumns = `org_id, id, name, phone, total_credit, total_visits, total_spent, last_visit, version, created_at, updated_at`
	statsColumns    = `id, org_id, bucket, total_sales_amount, total_cost_amount, total_profit, total_bills, total_items_sold, version, updated_at`
	saleColumns     = `org_id, id, invoice_number, sub_total, discount, tax, grand_total, total_cost, total_paid,
		payment_mode, customer_id, customer_name, customer_phone, created_by, created_at`
	saleItemColumns = `sale_id, line_no, product_id, product_name, quantity, selling_price, unit_cost, line_total, line_cost_total`
	movementColumns = `id, org_id, product_id, type, quantity, previous_stock, new_stock, unit_cost, reason, sale_id, created_by, created_at`
	ledgerColumns   = `id, org_id, customer_id, sequence, type, amount, balance_after, description, sale_id, created_by, created_at`
)

type txn struct {
	tx   *sqlx.Tx
	done bool
}

func (t *txn) GetProducts(ctx context.Context, orgID string, ids []string) (map[string]domain.Product, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE org_id = ? AND id IN (?)`, orgID, ids)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := t.tx.SelectContext(ctx, &products, t.tx.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t *txn) GetCustomer(ctx context.Context, orgID string, id string) (*domain.Customer, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	var c domain.Customer
	err := t.tx.GetContext(ctx, &c, t.tx.Rebind(`SELECT `+customerColumns+` FROM customers WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, mapError(notFound(err))
	}
	return &c, nil
}

func (t *txn) GetDailyStats(ctx context.Context, orgID string, date string) (*domain.DailyStats, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	return getDailyStats(ctx, t.tx, orgID, date)
}

func (t *txn) GetMonthlyStats(ctx context.Context, orgID string, month string) (*domain.MonthlyStats, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	return getMonthlyStats(ctx, t.tx, orgID, month)
}

func (t *txn) GetInvoiceCounter(ctx context.Context, orgID string, day string) (*domain.InvoiceCounter, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	var c domain.InvoiceCounter
	err := t.tx.GetContext(ctx, &c, t.tx.Rebind(`SELECT id, org_id, day, last_number, version FROM invoice_counters WHERE id = ?`), store.InvoiceCounterID(orgID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (t *txn) LatestSaleSince(ctx context.Context, orgID string, since time.Time) (*domain.Sale, error) {
	if t.done {
		return nil, store.ErrTxnClosed
	}
	var sale domain.Sale
	err := t.tx.GetContext(ctx, &sale, t.tx.Rebind(`
		SELECT `+saleColumns+`
		FROM sales
		WHERE org_id = ? AND created_at >= ?
		ORDER BY created_at DESC, invoice_number DESC
		LIMIT 1
	`), orgID, since.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &sale, nil
}

func (t *txn) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *txn) Commit(ctx context.Context, w store.WriteSet) (err error) {
	if t.done {
		return store.ErrTxnClosed
	}
	t.done = true
	defer func() {
		if err != nil {
			_ = t.tx.Rollback()
			err = mapError(err)
		}
	}()

	for _, p := range w.Products {
		if err := t.putProduct(ctx, p); err != nil {
			return err
		}
	}
	if w.Customer != nil {
		if err := t.putCustomer(ctx, *w.Customer); err != nil {
			return err
		}
	}
	if w.DailyStats != nil {
		b := w.DailyStats
		if err := t.putStats(ctx, "daily_stats", b.ID, b.OrgID, b.Date, b.StatsTotals, b.Version, b.UpdatedAt); err != nil {
			return err
		}
	}
	if w.MonthlyStats != nil {
		b := w.MonthlyStats
		if err := t.putStats(ctx, "monthly_stats", b.ID, b.OrgID, b.Month, b.StatsTotals, b.Version, b.UpdatedAt); err != nil {
			return err
		}
	}
	if w.InvoiceCounter != nil {
		if err := t.putCounter(ctx, *w.InvoiceCounter); err != nil {
			return err
		}
	}
	if w.Sale != nil {
		if err := t.insertSale(ctx, *w.Sale); err != nil {
			return err
		}
	}
	for _, mv := range w.StockMovements {
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO stock_movements (`+movementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			mv.ID, mv.OrgID, mv.ProductID, string(mv.Type), mv.Quantity, mv.PreviousStock, mv.NewStock,
			mv.UnitCost, mv.Reason, mv.SaleID, mv.CreatedBy, mv.CreatedAt.UTC()); err != nil {
			return err
		}
	}
	for _, e := range w.CustomerTransactions {
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO customer_transactions (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.OrgID, e.CustomerID, e.Sequence, string(e.Type), e.Amount, e.BalanceAfter,
			e.Description, e.SaleID, e.CreatedBy, e.CreatedAt.UTC()); err != nil {
			return err
		}
	}

	return t.tx.Commit()
}

func (t *txn) putProduct(ctx context.Context, p domain.Product) error {
	if p.Version == 0 {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`),
			p.OrgID, p.ID, p.Name, p.SKU, p.CurrentStock, p.LowStockThreshold, p.CostPrice, p.SellingPrice,
			p.TotalPurchased, p.TotalSold, p.TotalRevenue, p.TotalCost, utcPtr(p.LastSaleAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products
		SET name = ?, sku = ?, current_stock = ?, low_stock_threshold = ?, cost_price = ?, selling_price = ?,
			total_purchased = ?, total_sold = ?, total_revenue = ?, total_cost = ?, last_sale_at = ?,
			updated_at = ?, version = version + 1
		WHERE org_id = ? AND id = ? AND version = ?
	`), p.Name, p.SKU, p.CurrentStock, p.LowStockThreshold, p.CostPrice, p.SellingPrice,
		p.TotalPurchased, p.TotalSold, p.TotalRevenue, p.TotalCost, utcPtr(p.LastSaleAt),
		p.UpdatedAt.UTC(), p.OrgID, p.ID, p.Version)
	return expectOneRow(res, err)
}

func (t *txn) putCustomer(ctx context.Context, c domain.Customer) error {
	if c.Version == 0 {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`),
			c.OrgID, c.ID, c.Name, c.Phone, c.TotalCredit, c.TotalVisits, c.TotalSpent, utcPtr(c.LastVisit), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE customers
		SET name = ?, phone = ?, total_credit = ?, total_visits = ?, total_spent = ?, last_visit = ?,
			updated_at = ?, version = version + 1
		WHERE org_id = ? AND id = ? AND version = ?
	`), c.Name, c.Phone, c.TotalCredit, c.TotalVisits, c.TotalSpent, utcPtr(c.LastVisit),
		c.UpdatedAt.UTC(), c.OrgID, c.ID, c.Version)
	return expectOneRow(res, err)
}

func (t *txn) putStats(ctx context.Context, table, id, orgID, bucket string, totals domain.StatsTotals, version int64, at time.Time) error {
	if version == 0 {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO `+table+` (`+statsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`),
			id, orgID, bucket, totals.TotalSalesAmount, totals.TotalCostAmount, totals.TotalProfit,
			totals.TotalBills, totals.TotalItemsSold, at.UTC())
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE `+table+`
		SET total_sales_amount = ?, total_cost_amount = ?, total_profit = ?, total_bills = ?, total_items_sold = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`), totals.TotalSalesAmount, totals.TotalCostAmount, totals.TotalProfit, totals.TotalBills, totals.TotalItemsSold,
		at.UTC(), id, version)
	return expectOneRow(res, err)
}

func (t *txn) putCounter(ctx context.Context, c domain.InvoiceCounter) error {
	if c.Version == 0 {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO invoice_counters (id, org_id, day, last_number, version) VALUES (?, ?, ?, ?, 1)`),
			c.ID, c.OrgID, c.Day, c.LastNumber)
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE invoice_counters SET last_number = ?, version = version + 1 WHERE id = ? AND version = ?
	`), c.LastNumber, c.ID, c.Version)
	return expectOneRow(res, err)
}

func (t *txn) insertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sale.OrgID, sale.ID, sale.InvoiceNumber, sale.SubTotal, sale.Discount, sale.Tax, sale.GrandTotal,
		sale.TotalCost, sale.TotalPaid, string(sale.PaymentMode), sale.CustomerID, sale.CustomerName,
		sale.CustomerPhone, sale.CreatedBy, sale.CreatedAt.UTC())
	if err != nil {
		return err
	}
	for _, item := range sale.Items {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO sale_items (`+saleItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			sale.ID, item.LineNo, item.ProductID, item.ProductName, item.Quantity, item.SellingPrice,
			item.UnitCost, item.LineTotal, item.LineCostTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// expectOneRow turns a version-guarded update that matched nothing into a conflict.
func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return store.ErrConflict
	}
	return nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
