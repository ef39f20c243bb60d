package posting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

func ApplySaleLine(p domain.Product, qty int, lineTotal decimal.Decimal, at time.Time) (domain.Product, error) {
	if qty <= 0 {
		return p, invalidf("quantity must be positive")
	}
	if p.CurrentStock < qty {
		return p, &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.CurrentStock, Requested: qty}
	}
	p.CurrentStock -= qty
	p.TotalSold += qty
	p.TotalRevenue = p.TotalRevenue.Add(lineTotal)
	soldAt := at
	p.LastSaleAt = &soldAt
	p.UpdatedAt = at
	return p, nil
}

func ApplyAdjustment(p domain.Product, req domain.StockAdjustmentRequest, at time.Time) (domain.Product, error) {
	qty := req.Quantity
	switch req.Type {
	case domain.MovementIn:
		if qty <= 0 {
			return p, invalidf("quantity must be positive for %s", req.Type)
		}
		if req.UnitCost.IsNegative() {
			return p, invalidf("unit cost must not be negative")
		}
		p.CurrentStock += qty
		p.TotalPurchased += qty
		p.TotalCost = p.TotalCost.Add(req.UnitCost.Mul(decimal.NewFromInt(int64(qty))))
	case domain.MovementOut:
		if qty <= 0 {
			return p, invalidf("quantity must be positive for %s", req.Type)
		}
		if p.CurrentStock < qty {
			return p, &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.CurrentStock, Requested: qty}
		}
		p.CurrentStock -= qty
	case domain.MovementAdjustment:
		if qty < 0 {
			return p, invalidf("adjusted stock must not be negative")
		}
		p.CurrentStock = qty
	default:
		return p, invalidf("unknown movement type %q", req.Type)
	}
	p.UpdatedAt = at
	return p, nil
}

// PlanAdjustment builds the writes for a standalone stock change of product,
// which is nil when the product was not found in the read phase.
func (pl *Planner) PlanAdjustment(productID string, product *domain.Product, req domain.StockAdjustmentRequest, actor string, now time.Time) (store.WriteSet, domain.StockMovement, error) {
	if product == nil {
		return store.WriteSet{}, domain.StockMovement{}, &ProductNotFoundError{ProductID: productID}
	}
	if req.UnitCost.IsZero() {
		req.UnitCost = product.CostPrice
	}

	updated, err := ApplyAdjustment(*product, req, now)
	if err != nil {
		return store.WriteSet{}, domain.StockMovement{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultReason(req.Type)
	}
	movement := pl.movement(*product, updated, req.Type, req.Quantity, req.UnitCost, reason, "", actor, now)

	return store.WriteSet{
		Products:       []domain.Product{updated},
		StockMovements: []domain.StockMovement{movement},
	}, movement, nil
}

func (pl *Planner) PlanNewProduct(orgID string, req domain.ProductCreateRequest, actor string, now time.Time) (store.WriteSet, domain.Product, error) {
	product := domain.Product{
		OrgID:             orgID,
		ID:                pl.NewID("prod"),
		Name:              req.Name,
		SKU:               req.SKU,
		LowStockThreshold: req.LowStockThreshold,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	writes := store.WriteSet{}

	if req.InitialStock > 0 {
		stockIn := domain.StockAdjustmentRequest{
			Type:     domain.MovementIn,
			Quantity: req.InitialStock,
			UnitCost: req.CostPrice,
		}
		stocked, err := ApplyAdjustment(product, stockIn, now)
		if err != nil {
			return store.WriteSet{}, domain.Product{}, err
		}
		writes.StockMovements = append(writes.StockMovements,
			pl.movement(product, stocked, domain.MovementIn, req.InitialStock, req.CostPrice, "Opening stock", "", actor, now))
		product = stocked
	}

	writes.Products = []domain.Product{product}
	return writes, product, nil
}

func defaultReason(t domain.MovementType) string {
	switch t {
	case domain.MovementIn:
		return "Stock received"
	case domain.MovementOut:
		return "Stock removed"
	default:
		return "Stock count correction"
	}
}
