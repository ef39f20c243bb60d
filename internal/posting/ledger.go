package posting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

// PostCustomerEntry applies one ledger entry to c and returns the updated
// aggregate along with the row recording it. SALE and PAYMENT amounts are
// magnitudes and typ gives the direction; an opening balance keeps its sign.
func (pl *Planner) PostCustomerEntry(c domain.Customer, typ domain.CustomerTxType, amount decimal.Decimal, description, saleID, actor string, at time.Time) (domain.Customer, domain.CustomerTransaction) {
	entry := domain.CustomerTransaction{
		ID:          pl.NewID("ctx"),
		OrgID:       c.OrgID,
		CustomerID:  c.ID,
		Sequence:    c.Version + 1,
		Type:        typ,
		Amount:      amount,
		Description: description,
		SaleID:      saleID,
		CreatedBy:   actor,
		CreatedAt:   at,
	}
	c.TotalCredit = c.TotalCredit.Add(entry.SignedAmount())
	c.UpdatedAt = at
	entry.BalanceAfter = c.TotalCredit
	return c, entry
}

func (pl *Planner) PlanPayment(customerID string, customer *domain.Customer, req domain.PaymentRequest, actor string, now time.Time) (store.WriteSet, domain.CustomerTransaction, error) {
	if !req.Amount.IsPositive() {
		return store.WriteSet{}, domain.CustomerTransaction{}, invalidf("payment amount must be positive")
	}
	if customer == nil {
		return store.WriteSet{}, domain.CustomerTransaction{}, &CustomerNotFoundError{CustomerID: customerID}
	}

	description := strings.TrimSpace(req.Note)
	if description == "" {
		description = fmt.Sprintf("Payment received %s", req.Amount.StringFixed(2))
	}
	updated, entry := pl.PostCustomerEntry(*customer, domain.CustomerTxPayment, req.Amount, description, "", actor, now)

	return store.WriteSet{
		Customer:             &updated,
		CustomerTransactions: []domain.CustomerTransaction{entry},
	}, entry, nil
}

func (pl *Planner) PlanNewCustomer(orgID string, req domain.CustomerCreateRequest, actor string, now time.Time) (store.WriteSet, domain.Customer) {
	customer := domain.Customer{
		OrgID:     orgID,
		ID:        pl.NewID("cust"),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	writes := store.WriteSet{}
	if !req.OpeningBalance.IsZero() {
		var entry domain.CustomerTransaction
		customer, entry = pl.PostCustomerEntry(customer, domain.CustomerTxOpeningBalance, req.OpeningBalance, "Opening balance", "", actor, now)
		writes.CustomerTransactions = []domain.CustomerTransaction{entry}
	}
	writes.Customer = &customer
	return writes, customer
}

func ReplayLedger(entries []domain.CustomerTransaction) decimal.Decimal {
	balance := decimal.Zero
	for _, entry := range entries {
		balance = balance.Add(entry.SignedAmount())
	}
	return balance
}
