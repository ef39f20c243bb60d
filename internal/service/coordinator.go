package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/posting"
	"udhaar/backend/internal/store"
)

// RecordSale persists a sale with its stock, rollup, invoice and ledger
// effects as one atomic unit, retrying the whole read-plan-commit cycle when
// another writer got there first.
func (s *Service) RecordSale(ctx context.Context, orgID string, draft domain.SaleDraft) (domain.SaleReceipt, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.SaleReceipt{}, err
	}
	draft.CustomerID = strings.TrimSpace(draft.CustomerID)
	if err := s.checkStruct(draft); err != nil {
		return domain.SaleReceipt{}, err
	}
	if err := posting.ValidateDraft(draft); err != nil {
		return domain.SaleReceipt{}, err
	}

	actor := actorName(ctx)
	var sale domain.Sale
	err := s.runInTxn(ctx, "record sale", func(ctx context.Context, tx store.Txn) (store.WriteSet, error) {
		now := s.now()
		snap, err := s.readSaleSnapshot(ctx, tx, orgID, draft, now)
		if err != nil {
			return store.WriteSet{}, err
		}
		writes, planned, err := s.planner.PlanSale(orgID, draft, snap, actor, now)
		if err != nil {
			return store.WriteSet{}, err
		}
		sale = planned
		return writes, nil
	})
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	s.log.WithFields(logrus.Fields{
		"func":        "RecordSale",
		"org":         orgID,
		"sale_id":     sale.ID,
		"invoice":     sale.InvoiceNumber,
		"grand_total": sale.GrandTotal.String(),
		"mode":        sale.PaymentMode,
	}).Info("sale recorded")

	return domain.SaleReceipt{SaleID: sale.ID, InvoiceNumber: sale.InvoiceNumber}, nil
}

// readSaleSnapshot is the read phase of a sale. Buckets and the invoice base
// are resolved for now, which each attempt takes afresh, so a retry that
// crosses midnight lands in the new day.
func (s *Service) readSaleSnapshot(ctx context.Context, tx store.Txn, orgID string, draft domain.SaleDraft, now time.Time) (posting.SaleSnapshot, error) {
	ids := make([]string, 0, len(draft.Items))
	seen := make(map[string]struct{}, len(draft.Items))
	for _, item := range draft.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	var snap posting.SaleSnapshot
	var err error
	if snap.Products, err = tx.GetProducts(ctx, orgID, ids); err != nil {
		return snap, fmt.Errorf("read products: %w", err)
	}
	if draft.CustomerID != "" {
		snap.Customer, err = tx.GetCustomer(ctx, orgID, draft.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return snap, fmt.Errorf("read customer: %w", err)
		}
	}
	if snap.Daily, err = tx.GetDailyStats(ctx, orgID, s.planner.Day(now)); err != nil {
		return snap, fmt.Errorf("read daily stats: %w", err)
	}
	if snap.Monthly, err = tx.GetMonthlyStats(ctx, orgID, s.planner.Month(now)); err != nil {
		return snap, fmt.Errorf("read monthly stats: %w", err)
	}
	if snap.Counter, err = tx.GetInvoiceCounter(ctx, orgID, s.planner.InvoiceDay(now)); err != nil {
		return snap, fmt.Errorf("read invoice counter: %w", err)
	}
	if snap.Counter == nil {
		if snap.LatestSale, err = tx.LatestSaleSince(ctx, orgID, s.planner.StartOfDay(now)); err != nil {
			return snap, fmt.Errorf("read latest sale: %w", err)
		}
	}
	return snap, nil
}

func (s *Service) AdjustStock(ctx context.Context, orgID string, productID string, req domain.StockAdjustmentRequest) (domain.StockMovement, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.StockMovement{}, err
	}
	if err := s.checkStruct(req); err != nil {
		return domain.StockMovement{}, err
	}

	actor := actorName(ctx)
	var movement domain.StockMovement
	err := s.runInTxn(ctx, "adjust stock", func(ctx context.Context, tx store.Txn) (store.WriteSet, error) {
		products, err := tx.GetProducts(ctx, orgID, []string{productID})
		if err != nil {
			return store.WriteSet{}, fmt.Errorf("read product: %w", err)
		}
		var product *domain.Product
		if p, ok := products[productID]; ok {
			product = &p
		}
		writes, mv, err := s.planner.PlanAdjustment(productID, product, req, actor, s.now())
		if err != nil {
			return store.WriteSet{}, err
		}
		movement = mv
		return writes, nil
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.log.WithFields(logrus.Fields{
		"func":       "AdjustStock",
		"org":        orgID,
		"product_id": productID,
		"type":       movement.Type,
		"previous":   movement.PreviousStock,
		"new":        movement.NewStock,
	}).Info("stock adjusted")
	return movement, nil
}

func (s *Service) RecordCustomerPayment(ctx context.Context, orgID string, customerID string, req domain.PaymentRequest) (domain.CustomerTransaction, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.CustomerTransaction{}, err
	}
	if err := s.checkStruct(req); err != nil {
		return domain.CustomerTransaction{}, err
	}

	actor := actorName(ctx)
	var entry domain.CustomerTransaction
	err := s.runInTxn(ctx, "record payment", func(ctx context.Context, tx store.Txn) (store.WriteSet, error) {
		customer, err := tx.GetCustomer(ctx, orgID, customerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.WriteSet{}, fmt.Errorf("read customer: %w", err)
		}
		writes, posted, err := s.planner.PlanPayment(customerID, customer, req, actor, s.now())
		if err != nil {
			return store.WriteSet{}, err
		}
		entry = posted
		return writes, nil
	})
	if err != nil {
		return domain.CustomerTransaction{}, err
	}

	s.log.WithFields(logrus.Fields{
		"func":          "RecordCustomerPayment",
		"org":           orgID,
		"customer_id":   customerID,
		"amount":        entry.Amount.String(),
		"balance_after": entry.BalanceAfter.String(),
	}).Info("payment recorded")
	return entry, nil
}

func (s *Service) CreateProduct(ctx context.Context, orgID string, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if err := s.checkStruct(req); err != nil {
		return domain.Product{}, err
	}

	actor := actorName(ctx)
	var product domain.Product
	err := s.runInTxn(ctx, "create product", func(_ context.Context, _ store.Txn) (store.WriteSet, error) {
		writes, created, err := s.planner.PlanNewProduct(orgID, req, actor, s.now())
		if err != nil {
			return store.WriteSet{}, err
		}
		product = created
		return writes, nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	product.Version = 1
	s.log.WithFields(logrus.Fields{"func": "CreateProduct", "org": orgID, "product_id": product.ID, "stock": product.CurrentStock}).Info("product created")
	return product, nil
}

func (s *Service) CreateCustomer(ctx context.Context, orgID string, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if err := requireOrg(orgID); err != nil {
		return domain.Customer{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.checkStruct(req); err != nil {
		return domain.Customer{}, err
	}

	actor := actorName(ctx)
	var customer domain.Customer
	err := s.runInTxn(ctx, "create customer", func(_ context.Context, _ store.Txn) (store.WriteSet, error) {
		writes, created := s.planner.PlanNewCustomer(orgID, req, actor, s.now())
		customer = created
		return writes, nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	customer.Version = 1
	s.log.WithFields(logrus.Fields{"func": "CreateCustomer", "org": orgID, "customer_id": customer.ID}).Info("customer created")
	return customer, nil
}
