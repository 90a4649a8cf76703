package features

import (
	"math"

	"ecommerce-feature-pipeline/internal/models"

	"github.com/shopspring/decimal"
)

// NoCancellationSentinelDays marks customers with no cancellation on
// record. It is deliberately far outside any plausible measured recency so
// a model can tell "never cancelled" apart from "cancelled long ago".
const NoCancellationSentinelDays = 1000

// MergeFeatures left-joins the purchase rows with the cancellation rows on
// customer ID and derives the cross-feature ratios. Every purchase
// customer appears exactly once in the result; purchase customers without
// a cancellation row get zero-filled cancellation fields and the recency
// sentinel. Cancellation-only customers are dropped, matching the join
// direction.
func MergeFeatures(purchases []*models.CustomerPurchaseFeatures, cancellations []*models.CustomerCancellationFeatures) []*models.CustomerFeatureRow {
	cancelByCustomer := make(map[string]*models.CustomerCancellationFeatures, len(cancellations))
	for _, row := range cancellations {
		cancelByCustomer[row.CustomerID] = row
	}

	rows := make([]*models.CustomerFeatureRow, 0, len(purchases))
	for _, purchase := range purchases {
		row := &models.CustomerFeatureRow{
			CustomerPurchaseFeatures: *purchase,
			TotalCancelAmount:        decimal.Zero,
		}

		if cancel, ok := cancelByCustomer[purchase.CustomerID]; ok {
			row.CancellationCount = cancel.CancellationCount
			row.TotalCancelAmount = cancel.TotalCancelAmount
			row.TotalCancelQty = cancel.TotalCancelQty
			row.DaysSinceLastCancellation = cancel.DaysSinceLastCancellation
		} else {
			row.DaysSinceLastCancellation = NoCancellationSentinelDays
		}

		deriveRatios(row)
		sweepNonFinite(row)
		rows = append(rows, row)
	}

	return rows
}

// deriveRatios computes the cross-feature ratios, each guarded so a zero
// denominator yields 0 rather than an infinity.
func deriveRatios(row *models.CustomerFeatureRow) {
	totalEvents := row.CountOrders + row.CancellationCount
	if totalEvents > 0 {
		row.CancellationRate = float64(row.CancellationCount) / float64(totalEvents)
		row.OrderCompletionRate = float64(row.CountOrders) / float64(totalEvents)
	}
	if row.TotalItems > 0 {
		row.ReturnPurchaseRatio = float64(row.TotalCancelQty) / float64(row.TotalItems)
	}
}

// sweepNonFinite replaces any NaN or infinite float field with 0. The
// guards above should make this a no-op; it exists so the output table
// can never carry a non-finite value regardless of upstream arithmetic.
func sweepNonFinite(row *models.CustomerFeatureRow) {
	fields := []*float64{
		&row.AvgItemsPerOrder,
		&row.ProductDiversityRatio,
		&row.StdOrderValue,
		&row.AvgDaysBetweenOrders,
		&row.CancellationRate,
		&row.OrderCompletionRate,
		&row.ReturnPurchaseRatio,
	}
	for _, f := range fields {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
}

// AttachChurnLabels sets the Churned label on each row from the
// post-cutoff partition: 1 when the customer made no purchase after the
// reference date, 0 otherwise. Cancellations after the cutoff do not count
// as activity.
func AttachChurnLabels(rows []*models.CustomerFeatureRow, after []*models.CleanedTransaction) {
	active := make(map[string]bool)
	for _, record := range after {
		if !record.IsCancellation {
			active[record.CustomerID] = true
		}
	}

	for _, row := range rows {
		label := 1
		if active[row.CustomerID] {
			label = 0
		}
		row.Churned = &label
	}
}
