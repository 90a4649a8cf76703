package features

import (
	"sort"
	"time"

	"ecommerce-feature-pipeline/internal/models"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// purchaseAccumulator collects per-customer state while scanning the
// pre-cutoff partition. Order values are kept per invoice because max,
// min and std of order value are invoice-granularity statistics: one
// invoice may span many line items.
type purchaseAccumulator struct {
	customerID    string
	totalPurchase decimal.Decimal
	totalItems    int64
	firstDate     time.Time
	lastDate      time.Time
	products      map[string]bool
	invoiceTotals map[string]decimal.Decimal
}

// AggregatePurchases rolls up the non-cancellation records of the
// pre-cutoff partition into one CustomerPurchaseFeatures row per customer.
// Rows come back sorted by customer ID so output is deterministic.
func AggregatePurchases(before []*models.CleanedTransaction, referenceDate time.Time) []*models.CustomerPurchaseFeatures {
	accs := make(map[string]*purchaseAccumulator)

	for _, record := range before {
		if record.IsCancellation {
			continue
		}

		acc, ok := accs[record.CustomerID]
		if !ok {
			acc = &purchaseAccumulator{
				customerID:    record.CustomerID,
				totalPurchase: decimal.Zero,
				products:      make(map[string]bool),
				invoiceTotals: make(map[string]decimal.Decimal),
			}
			accs[record.CustomerID] = acc
		}

		acc.totalPurchase = acc.totalPurchase.Add(record.PurchaseAmount)
		acc.totalItems += record.PurchaseQty
		acc.products[record.StockCode] = true
		acc.invoiceTotals[record.InvoiceNo] = acc.invoiceTotals[record.InvoiceNo].Add(record.PurchaseAmount)
		if acc.firstDate.IsZero() || record.InvoiceDate.Before(acc.firstDate) {
			acc.firstDate = record.InvoiceDate
		}
		if record.InvoiceDate.After(acc.lastDate) {
			acc.lastDate = record.InvoiceDate
		}
	}

	rows := make([]*models.CustomerPurchaseFeatures, 0, len(accs))
	for _, acc := range accs {
		rows = append(rows, acc.finalize(referenceDate))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CustomerID < rows[j].CustomerID })
	return rows
}

func (acc *purchaseAccumulator) finalize(referenceDate time.Time) *models.CustomerPurchaseFeatures {
	row := &models.CustomerPurchaseFeatures{
		CustomerID:        acc.customerID,
		TotalPurchase:     acc.totalPurchase,
		CountOrders:       len(acc.invoiceTotals),
		TotalItems:        acc.totalItems,
		FirstPurchaseDate: acc.firstDate,
		LastPurchaseDate:  acc.lastDate,
		NumUniqueProducts: len(acc.products),
	}

	orders := decimal.NewFromInt(int64(row.CountOrders))
	row.AvgOrderValue = acc.totalPurchase.Div(orders)
	row.AvgItemsPerOrder = float64(acc.totalItems) / float64(row.CountOrders)
	if acc.totalItems > 0 {
		row.ProductDiversityRatio = float64(row.NumUniqueProducts) / float64(acc.totalItems)
	}

	row.MaxOrderValue, row.MinOrderValue, row.StdOrderValue = orderValueStats(acc.invoiceTotals)

	row.DaysSinceLastPurchase = models.DaysBetween(row.LastPurchaseDate, referenceDate)
	row.DaysSinceFirstPurchase = models.DaysBetween(row.FirstPurchaseDate, referenceDate)
	row.PurchaseSpanDays = models.DaysBetween(row.FirstPurchaseDate, row.LastPurchaseDate)

	// Single-order customers get 0 here, not "unknown". The downstream
	// model was trained against this convention, so it stays.
	if row.CountOrders > 1 {
		row.AvgDaysBetweenOrders = float64(row.PurchaseSpanDays) / float64(row.CountOrders-1)
	}

	return row
}

// orderValueStats computes max, min and the sample standard deviation of
// the per-invoice totals. A single invoice has no variance; std is 0 and
// min falls back to max by construction.
func orderValueStats(invoiceTotals map[string]decimal.Decimal) (maxVal, minVal decimal.Decimal, std float64) {
	values := make([]float64, 0, len(invoiceTotals))
	first := true
	for _, total := range invoiceTotals {
		if first {
			maxVal, minVal = total, total
			first = false
		} else {
			if total.GreaterThan(maxVal) {
				maxVal = total
			}
			if total.LessThan(minVal) {
				minVal = total
			}
		}
		values = append(values, total.InexactFloat64())
	}

	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}
	return maxVal, minVal, std
}
