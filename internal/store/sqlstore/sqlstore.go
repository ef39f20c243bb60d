// Package sqlstore persists documents in Postgres (pgx) or SQLite (modernc).
// Optimistic concurrency is enforced with a version column on every mutable
// table: updates match on the version that was read, and creates rely on the
// primary key, so a lost race surfaces as store.ErrConflict.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"udhaar/backend/internal/store"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	driver    string
	money     string
	timestamp string
	txOptions *sql.TxOptions
}

var dialects = map[string]dialect{
	DriverPostgres: {
		driver:    DriverPostgres,
		money:     "NUMERIC(18,4)",
		timestamp: "TIMESTAMPTZ",
		txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
	},
	DriverSQLite: {
		driver:    DriverSQLite,
		money:     "TEXT",
		timestamp: "DATETIME",
	},
}

type Store struct {
	db      *sqlx.DB
	dialect dialect
}

var _ store.Repository = (*Store)(nil)

func Open(ctx context.Context, driver string, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if d.driver == DriverSQLite {
		// A single connection serialises SQLite writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(8)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (store.Txn, error) {
	tx, err := s.db.BeginTxx(ctx, s.dialect.txOptions)
	if err != nil {
		return nil, mapError(err)
	}
	return &txn{tx: tx}, nil
}

func (s *Store) migrate(ctx context.Context) error {
	money, ts := s.dialect.money, s.dialect.timestamp
	schema := []string{
		`CREATE TABLE IF NOT EXISTS products (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			current_stock INTEGER NOT NULL CHECK (current_stock >= 0),
			low_stock_threshold INTEGER NOT NULL DEFAULT 0,
			cost_price ` + money + ` NOT NULL,
			selling_price ` + money + ` NOT NULL,
			total_purchased INTEGER NOT NULL DEFAULT 0,
			total_sold INTEGER NOT NULL DEFAULT 0,
			total_revenue ` + money + ` NOT NULL,
			total_cost ` + money + ` NOT NULL,
			last_sale_at ` + ts + `,
			version BIGINT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			PRIMARY KEY (org_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			total_credit ` + money + ` NOT NULL,
			total_visits INTEGER NOT NULL DEFAULT 0,
			total_spent ` + money + ` NOT NULL,
			last_visit ` + ts + `,
			version BIGINT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			PRIMARY KEY (org_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			org_id TEXT NOT NULL,
			id TEXT NOT NULL,
			invoice_number TEXT NOT NULL,
			sub_total ` + money + ` NOT NULL,
			discount ` + money + ` NOT NULL,
			tax ` + money + ` NOT NULL,
			grand_total ` + money + ` NOT NULL,
			total_cost ` + money + ` NOT NULL,
			total_paid ` + money + ` NOT NULL,
			payment_mode TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			PRIMARY KEY (org_id, id),
			UNIQUE (org_id, invoice_number)
		)`,
		`CREATE INDEX IF NOT EXISTS sales_org_created_idx ON sales (org_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			sale_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			selling_price ` + money + ` NOT NULL,
			unit_cost ` + money + ` NOT NULL,
			line_total ` + money + ` NOT NULL,
			line_cost_total ` + money + ` NOT NULL,
			PRIMARY KEY (sale_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			type TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			previous_stock INTEGER NOT NULL,
			new_stock INTEGER NOT NULL,
			unit_cost ` + money + ` NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			sale_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS stock_movements_product_idx ON stock_movements (org_id, product_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS daily_stats (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			bucket TEXT NOT NULL,
			total_sales_amount ` + money + ` NOT NULL,
			total_cost_amount ` + money + ` NOT NULL,
			total_profit ` + money + ` NOT NULL,
			total_bills INTEGER NOT NULL,
			total_items_sold INTEGER NOT NULL,
			version BIGINT NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS monthly_stats (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			bucket TEXT NOT NULL,
			total_sales_amount ` + money + ` NOT NULL,
			total_cost_amount ` + money + ` NOT NULL,
			total_profit ` + money + ` NOT NULL,
			total_bills INTEGER NOT NULL,
			total_items_sold INTEGER NOT NULL,
			version BIGINT NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customer_transactions (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			sequence BIGINT NOT NULL,
			type TEXT NOT NULL,
			amount ` + money + ` NOT NULL,
			balance_after ` + money + ` NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			sale_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			UNIQUE (org_id, customer_id, sequence)
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_counters (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			day TEXT NOT NULL,
			last_number INTEGER NOT NULL,
			version BIGINT NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
