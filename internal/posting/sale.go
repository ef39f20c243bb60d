package posting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

type SaleSnapshot struct {
	Products map[string]domain.Product
	// Customer is nil when the draft names no customer or the customer was not found.
	Customer *domain.Customer
	Daily    *domain.DailyStats
	Monthly  *domain.MonthlyStats
	Counter  *domain.InvoiceCounter
	// LatestSale is only read when Counter is nil.
	LatestSale *domain.Sale
}

// ValidateDraft rejects malformed drafts. It needs no stored state and runs
// before the read phase.
func ValidateDraft(d domain.SaleDraft) error {
	if len(d.Items) == 0 {
		return invalidf("sale has no items")
	}
	if !d.PaymentMode.Valid() {
		return invalidf("unknown payment mode %q", d.PaymentMode)
	}
	for name, v := range map[string]decimal.Decimal{
		"sub_total":   d.SubTotal,
		"discount":    d.Discount,
		"tax":         d.Tax,
		"grand_total": d.GrandTotal,
		"total_cost":  d.TotalCost,
		"total_paid":  d.TotalPaid,
	} {
		if v.IsNegative() {
			return invalidf("%s must not be negative", name)
		}
	}

	subTotal, totalCost := decimal.Zero, decimal.Zero
	for i, item := range d.Items {
		if item.ProductID == "" {
			return invalidf("item %d has no product", i+1)
		}
		if item.Quantity <= 0 {
			return invalidf("item %d quantity must be positive", i+1)
		}
		if item.SellingPrice.IsNegative() || item.UnitCost.IsNegative() {
			return invalidf("item %d has a negative price", i+1)
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		if !item.LineTotal.Equal(item.SellingPrice.Mul(qty)) {
			return invalidf("item %d line total %s does not equal quantity x price", i+1, item.LineTotal)
		}
		if !item.LineCostTotal.Equal(item.UnitCost.Mul(qty)) {
			return invalidf("item %d line cost %s does not equal quantity x unit cost", i+1, item.LineCostTotal)
		}
		subTotal = subTotal.Add(item.LineTotal)
		totalCost = totalCost.Add(item.LineCostTotal)
	}

	if !d.SubTotal.Equal(subTotal) {
		return invalidf("sub total %s does not match line totals %s", d.SubTotal, subTotal)
	}
	if !d.TotalCost.Equal(totalCost) {
		return invalidf("total cost %s does not match line costs %s", d.TotalCost, totalCost)
	}
	if !d.GrandTotal.Equal(d.SubTotal.Sub(d.Discount).Add(d.Tax)) {
		return invalidf("grand total %s does not equal sub total - discount + tax", d.GrandTotal)
	}
	if d.PaymentMode == domain.PaymentCredit {
		if d.CustomerID == "" {
			return invalidf("credit sale requires a customer")
		}
		if d.TotalPaid.GreaterThan(d.GrandTotal) {
			return invalidf("total paid exceeds grand total on a credit sale")
		}
	}
	return nil
}

func (pl *Planner) PlanSale(orgID string, draft domain.SaleDraft, snap SaleSnapshot, actor string, now time.Time) (store.WriteSet, domain.Sale, error) {
	demand := make(map[string]int, len(draft.Items))
	order := make([]string, 0, len(draft.Items))
	for _, item := range draft.Items {
		product, ok := snap.Products[item.ProductID]
		if !ok {
			return store.WriteSet{}, domain.Sale{}, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if _, seen := demand[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		demand[item.ProductID] += item.Quantity
		if product.CurrentStock < demand[item.ProductID] {
			return store.WriteSet{}, domain.Sale{}, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.CurrentStock,
				Requested:   demand[item.ProductID],
			}
		}
	}
	if draft.CustomerID != "" && snap.Customer == nil {
		return store.WriteSet{}, domain.Sale{}, &CustomerNotFoundError{CustomerID: draft.CustomerID}
	}

	counter, invoice := NextInvoice(orgID, pl.InvoiceDay(now), snap.Counter, snap.LatestSale)
	sale := domain.Sale{
		ID:            pl.NewID("sale"),
		OrgID:         orgID,
		InvoiceNumber: invoice,
		Items:         make([]domain.SaleLineItem, 0, len(draft.Items)),
		SubTotal:      draft.SubTotal,
		Discount:      draft.Discount,
		Tax:           draft.Tax,
		GrandTotal:    draft.GrandTotal,
		TotalCost:     draft.TotalCost,
		TotalPaid:     draft.TotalPaid,
		PaymentMode:   draft.PaymentMode,
		CustomerID:    draft.CustomerID,
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		CreatedBy:     actor,
		CreatedAt:     now,
	}

	writes := store.WriteSet{InvoiceCounter: &counter}
	working := make(map[string]domain.Product, len(order))
	for _, id := range order {
		working[id] = snap.Products[id]
	}

	reason := fmt.Sprintf("Sale %s", invoice)
	for i, item := range draft.Items {
		before := working[item.ProductID]
		after, err := ApplySaleLine(before, item.Quantity, item.LineTotal, now)
		if err != nil {
			return store.WriteSet{}, domain.Sale{}, err
		}
		working[item.ProductID] = after

		writes.StockMovements = append(writes.StockMovements,
			pl.movement(before, after, domain.MovementOut, item.Quantity, item.UnitCost, reason, sale.ID, actor, now))
		sale.Items = append(sale.Items, domain.SaleLineItem{
			SaleID:        sale.ID,
			LineNo:        i + 1,
			ProductID:     item.ProductID,
			ProductName:   before.Name,
			Quantity:      item.Quantity,
			SellingPrice:  item.SellingPrice,
			UnitCost:      item.UnitCost,
			LineTotal:     item.LineTotal,
			LineCostTotal: item.LineCostTotal,
		})
	}
	for _, id := range order {
		writes.Products = append(writes.Products, working[id])
	}

	delta := SaleDelta(sale)
	daily := MergeDaily(snap.Daily, orgID, pl.Day(now), delta, now)
	monthly := MergeMonthly(snap.Monthly, orgID, pl.Month(now), delta, now)
	writes.DailyStats = &daily
	writes.MonthlyStats = &monthly

	if snap.Customer != nil {
		customer := *snap.Customer
		customer.TotalVisits++
		customer.TotalSpent = customer.TotalSpent.Add(sale.GrandTotal)
		visitedAt := now
		customer.LastVisit = &visitedAt

		credit := decimal.Zero
		description := fmt.Sprintf("Sale %s paid in full", invoice)
		if sale.PaymentMode == domain.PaymentCredit {
			credit = sale.GrandTotal.Sub(sale.TotalPaid)
			description = fmt.Sprintf("Sale %s on credit", invoice)
		}
		customer, entry := pl.PostCustomerEntry(customer, domain.CustomerTxSale, credit, description, sale.ID, actor, now)
		writes.Customer = &customer
		writes.CustomerTransactions = []domain.CustomerTransaction{entry}

		if sale.CustomerName == "" {
			sale.CustomerName = customer.Name
		}
		if sale.CustomerPhone == "" {
			sale.CustomerPhone = customer.Phone
		}
	}

	writes.Sale = &sale
	return writes, sale, nil
}
