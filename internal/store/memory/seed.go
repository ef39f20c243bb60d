package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"udhaar/backend/internal/domain"
)

const SeedOrgID = "demo-shop"

// NewSeeded returns a store holding a small kirana catalogue and two regular
// customers for SeedOrgID, for local development.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	catalogue := []struct {
		id, name, sku string
		cost, price   string
		stock, low    int
	}{
		{"prod-atta-5kg", "Aashirvaad Atta 5kg", "ATTA-5KG", "215", "245", 40, 8},
		{"prod-toor-dal-1kg", "Toor Dal 1kg", "DAL-TOOR-1KG", "118", "140", 30, 6},
		{"prod-parle-g", "Parle-G 250g", "BISC-PARLEG", "21", "25", 120, 24},
		{"prod-tata-salt", "Tata Salt 1kg", "SALT-TATA-1KG", "22", "28", 60, 12},
		{"prod-amul-butter", "Amul Butter 100g", "DAIRY-AMUL-BTR", "50", "58", 18, 5},
		{"prod-sunflower-oil", "Sunflower Oil 1L", "OIL-SUN-1L", "128", "155", 4, 6},
	}
	for _, item := range catalogue {
		cost := decimal.RequireFromString(item.cost)
		s.products[key(SeedOrgID, item.id)] = domain.Product{
			OrgID:             SeedOrgID,
			ID:                item.id,
			Name:              item.name,
			SKU:               item.sku,
			CurrentStock:      item.stock,
			LowStockThreshold: item.low,
			CostPrice:         cost,
			SellingPrice:      decimal.RequireFromString(item.price),
			TotalPurchased:    item.stock,
			TotalCost:         cost.Mul(decimal.NewFromInt(int64(item.stock))),
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	for _, c := range []struct{ id, name, phone string }{
		{"cust-ramesh", "Ramesh Kumar", "9845012345"},
		{"cust-lakshmi", "Lakshmi Stores", "9900123456"},
	} {
		s.customers[key(SeedOrgID, c.id)] = domain.Customer{
			OrgID:     SeedOrgID,
			ID:        c.id,
			Name:      c.name,
			Phone:     c.phone,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return s
}
