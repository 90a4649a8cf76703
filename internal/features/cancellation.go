package features

import (
	"sort"
	"time"

	"ecommerce-feature-pipeline/internal/models"

	"github.com/shopspring/decimal"
)

// AggregateCancellations rolls up the cancellation records of the
// pre-cutoff partition into one CustomerCancellationFeatures row per
// customer. Customers without a cancellation get no row; the merge stage
// fills their fields. The count is per cancellation record, not per
// distinct invoice.
func AggregateCancellations(before []*models.CleanedTransaction, referenceDate time.Time) []*models.CustomerCancellationFeatures {
	byCustomer := make(map[string]*models.CustomerCancellationFeatures)

	for _, record := range before {
		if !record.IsCancellation {
			continue
		}

		row, ok := byCustomer[record.CustomerID]
		if !ok {
			row = &models.CustomerCancellationFeatures{
				CustomerID:        record.CustomerID,
				TotalCancelAmount: decimal.Zero,
			}
			byCustomer[record.CustomerID] = row
		}

		row.CancellationCount++
		row.TotalCancelAmount = row.TotalCancelAmount.Add(record.CancelAmount)
		row.TotalCancelQty += record.CancelQty
		if record.InvoiceDate.After(row.LastCancellationDate) {
			row.LastCancellationDate = record.InvoiceDate
		}
	}

	rows := make([]*models.CustomerCancellationFeatures, 0, len(byCustomer))
	for _, row := range byCustomer {
		row.DaysSinceLastCancellation = models.DaysBetween(row.LastCancellationDate, referenceDate)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CustomerID < rows[j].CustomerID })
	return rows
}
