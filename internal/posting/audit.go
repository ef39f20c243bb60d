package posting

import (
	"time"

	"github.com/shopspring/decimal"

	"udhaar/backend/internal/domain"
)

func (pl *Planner) movement(before, after domain.Product, typ domain.MovementType, qty int, unitCost decimal.Decimal, reason, saleID, actor string, at time.Time) domain.StockMovement {
	return domain.StockMovement{
		ID:            pl.NewID("mov"),
		OrgID:         after.OrgID,
		ProductID:     after.ID,
		Type:          typ,
		Quantity:      qty,
		PreviousStock: before.CurrentStock,
		NewStock:      after.CurrentStock,
		UnitCost:      unitCost,
		Reason:        reason,
		SaleID:        saleID,
		CreatedBy:     actor,
		CreatedAt:     at,
	}
}
