package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentCard   PaymentMode = "card"
	PaymentUPI    PaymentMode = "upi"
	PaymentCredit PaymentMode = "credit"
	PaymentOther  PaymentMode = "other"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentCredit, PaymentOther:
		return true
	}
	return false
}

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

type CustomerTxType string

const (
	CustomerTxSale           CustomerTxType = "SALE"
	CustomerTxPayment        CustomerTxType = "PAYMENT"
	CustomerTxOpeningBalance CustomerTxType = "OPENING_BALANCE"
)

type Actor struct {
	Username string
	Role     string
	OrgID    string
}

type Product struct {
	OrgID             string          `json:"org_id" db:"org_id"`
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	SKU               string          `json:"sku" db:"sku"`
	CurrentStock      int             `json:"current_stock" db:"current_stock"`
	LowStockThreshold int             `json:"low_stock_threshold" db:"low_stock_threshold"`
	CostPrice         decimal.Decimal `json:"cost_price" db:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price" db:"selling_price"`
	TotalPurchased    int             `json:"total_purchased" db:"total_purchased"`
	TotalSold         int             `json:"total_sold" db:"total_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	TotalCost         decimal.Decimal `json:"total_cost" db:"total_cost"`
	LastSaleAt        *time.Time      `json:"last_sale_at,omitempty" db:"last_sale_at"`
	Version           int64           `json:"version" db:"version"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (p Product) IsLowStock() bool {
	return p.CurrentStock <= p.LowStockThreshold
}

type ProductCreateRequest struct {
	Name              string          `json:"name" validate:"required,max=200"`
	SKU               string          `json:"sku" validate:"max=64"`
	CostPrice         decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SellingPrice      decimal.Decimal `json:"selling_price" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
	InitialStock      int             `json:"initial_stock" validate:"gte=0"`
}

type StockMovement struct {
	ID            string          `json:"id" db:"id"`
	OrgID         string          `json:"org_id" db:"org_id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	Type          MovementType    `json:"type" db:"type"`
	Quantity      int             `json:"quantity" db:"quantity"`
	PreviousStock int             `json:"previous_stock" db:"previous_stock"`
	NewStock      int             `json:"new_stock" db:"new_stock"`
	UnitCost      decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	Reason        string          `json:"reason" db:"reason"`
	SaleID        string          `json:"sale_id,omitempty" db:"sale_id"`
	CreatedBy     string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type StockAdjustmentRequest struct {
	Type     MovementType    `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity int             `json:"quantity" validate:"gte=0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Reason   string          `json:"reason" validate:"max=500"`
}

type SaleLineItem struct {
	SaleID        string          `json:"-" db:"sale_id"`
	LineNo        int             `json:"line_no" db:"line_no"`
	ProductID     string          `json:"product_id" db:"product_id"`
	ProductName   string          `json:"product_name" db:"product_name"`
	Quantity      int             `json:"quantity" db:"quantity"`
	SellingPrice  decimal.Decimal `json:"selling_price" db:"selling_price"`
	UnitCost      decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	LineTotal     decimal.Decimal `json:"line_total" db:"line_total"`
	LineCostTotal decimal.Decimal `json:"line_cost_total" db:"line_cost_total"`
}

type Sale struct {
	ID            string          `json:"id" db:"id"`
	OrgID         string          `json:"org_id" db:"org_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Items         []SaleLineItem  `json:"items" db:"-"`
	SubTotal      decimal.Decimal `json:"sub_total" db:"sub_total"`
	Discount      decimal.Decimal `json:"discount" db:"discount"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	GrandTotal    decimal.Decimal `json:"grand_total" db:"grand_total"`
	TotalCost     decimal.Decimal `json:"total_cost" db:"total_cost"`
	TotalPaid     decimal.Decimal `json:"total_paid" db:"total_paid"`
	PaymentMode   PaymentMode     `json:"payment_mode" db:"payment_mode"`
	CustomerID    string          `json:"customer_id,omitempty" db:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty" db:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty" db:"customer_phone"`
	CreatedBy     string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type SaleDraftItem struct {
	ProductID     string          `json:"product_id" validate:"required"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	SellingPrice  decimal.Decimal `json:"selling_price" validate:"gte=0"`
	UnitCost      decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	LineTotal     decimal.Decimal `json:"line_total" validate:"gte=0"`
	LineCostTotal decimal.Decimal `json:"line_cost_total" validate:"gte=0"`
}

type SaleDraft struct {
	Items         []SaleDraftItem `json:"items" validate:"required,min=1,dive"`
	SubTotal      decimal.Decimal `json:"sub_total" validate:"gte=0"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	Tax           decimal.Decimal `json:"tax" validate:"gte=0"`
	GrandTotal    decimal.Decimal `json:"grand_total" validate:"gte=0"`
	TotalCost     decimal.Decimal `json:"total_cost" validate:"gte=0"`
	TotalPaid     decimal.Decimal `json:"total_paid" validate:"gte=0"`
	PaymentMode   PaymentMode     `json:"payment_mode" validate:"required,oneof=cash card upi credit other"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty" validate:"max=200"`
	CustomerPhone string          `json:"customer_phone,omitempty" validate:"max=32"`
}

type SaleReceipt struct {
	SaleID        string `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
}

// StatsTotals is shared by the daily and monthly buckets so both are merged
// through one code path.
type StatsTotals struct {
	TotalSalesAmount decimal.Decimal `json:"total_sales_amount" db:"total_sales_amount"`
	TotalCostAmount  decimal.Decimal `json:"total_cost_amount" db:"total_cost_amount"`
	TotalProfit      decimal.Decimal `json:"total_profit" db:"total_profit"`
	TotalBills       int             `json:"total_bills" db:"total_bills"`
	TotalItemsSold   int             `json:"total_items_sold" db:"total_items_sold"`
}

func (t StatsTotals) Add(delta StatsTotals) StatsTotals {
	return StatsTotals{
		TotalSalesAmount: t.TotalSalesAmount.Add(delta.TotalSalesAmount),
		TotalCostAmount:  t.TotalCostAmount.Add(delta.TotalCostAmount),
		TotalProfit:      t.TotalProfit.Add(delta.TotalProfit),
		TotalBills:       t.TotalBills + delta.TotalBills,
		TotalItemsSold:   t.TotalItemsSold + delta.TotalItemsSold,
	}
}

type DailyStats struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`
	Date  string `json:"date" db:"bucket"`
	StatsTotals
	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type MonthlyStats struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`
	Month string `json:"month" db:"bucket"`
	StatsTotals
	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Customer struct {
	OrgID       string          `json:"org_id" db:"org_id"`
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Phone       string          `json:"phone" db:"phone"`
	TotalCredit decimal.Decimal `json:"total_credit" db:"total_credit"`
	TotalVisits int             `json:"total_visits" db:"total_visits"`
	TotalSpent  decimal.Decimal `json:"total_spent" db:"total_spent"`
	LastVisit   *time.Time      `json:"last_visit,omitempty" db:"last_visit"`
	Version     int64           `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type CustomerCreateRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Phone          string          `json:"phone" validate:"max=32"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type CustomerTransaction struct {
	ID           string          `json:"id" db:"id"`
	OrgID        string          `json:"org_id" db:"org_id"`
	CustomerID   string          `json:"customer_id" db:"customer_id"`
	Sequence     int64           `json:"sequence" db:"sequence"`
	Type         CustomerTxType  `json:"type" db:"type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Description  string          `json:"description" db:"description"`
	SaleID       string          `json:"sale_id,omitempty" db:"sale_id"`
	CreatedBy    string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

func (t CustomerTransaction) SignedAmount() decimal.Decimal {
	if t.Type == CustomerTxPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Note   string          `json:"note" validate:"max=500"`
}

type LedgerReconciliation struct {
	CustomerID  string          `json:"customer_id"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Replayed    decimal.Decimal `json:"replayed"`
	Entries     int             `json:"entries"`
	Consistent  bool            `json:"consistent"`
}

type InvoiceCounter struct {
	ID         string `json:"id" db:"id"`
	OrgID      string `json:"org_id" db:"org_id"`
	Day        string `json:"day" db:"day"`
	LastNumber int    `json:"last_number" db:"last_number"`
	Version    int64  `json:"version" db:"version"`
}
