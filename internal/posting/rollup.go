package posting

import (
	"time"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

func SaleDelta(sale domain.Sale) domain.StatsTotals {
	items := 0
	for _, line := range sale.Items {
		items += line.Quantity
	}
	return domain.StatsTotals{
		TotalSalesAmount: sale.GrandTotal,
		TotalCostAmount:  sale.TotalCost,
		TotalProfit:      sale.GrandTotal.Sub(sale.TotalCost),
		TotalBills:       1,
		TotalItemsSold:   items,
	}
}

// MergeDaily returns existing incremented by delta, or a new bucket holding
// delta when existing is nil. The returned bucket keeps existing's Version.
func MergeDaily(existing *domain.DailyStats, orgID string, date string, delta domain.StatsTotals, at time.Time) domain.DailyStats {
	bucket := domain.DailyStats{ID: store.DailyStatsID(orgID, date), OrgID: orgID, Date: date}
	if existing != nil {
		bucket = *existing
	}
	bucket.StatsTotals = bucket.StatsTotals.Add(delta)
	bucket.UpdatedAt = at
	return bucket
}

func MergeMonthly(existing *domain.MonthlyStats, orgID string, month string, delta domain.StatsTotals, at time.Time) domain.MonthlyStats {
	bucket := domain.MonthlyStats{ID: store.MonthlyStatsID(orgID, month), OrgID: orgID, Month: month}
	if existing != nil {
		bucket = *existing
	}
	bucket.StatsTotals = bucket.StatsTotals.Add(delta)
	bucket.UpdatedAt = at
	return bucket
}
