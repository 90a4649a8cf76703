// Package features turns cleaned transactions into the customer feature
// table: a temporal split at a reference date, independent purchase and
// cancellation roll-ups over the pre-cutoff partition, and a left join
// with derived ratios. Every stage is a pure function of its inputs and
// the resolved reference date.
package features

import (
	"time"

	"ecommerce-feature-pipeline/internal/models"
)

// DefaultReferenceOffsetMonths is how far the default reference date sits
// before the newest invoice in the dataset. Transactions after the cutoff
// are reserved as label evidence and never feed a feature.
const DefaultReferenceOffsetMonths = 3

// Split is the result of partitioning cleaned records at the reference
// date. Before holds feature-eligible history (invoice date at or before
// the cutoff), After holds label evidence (strictly after it).
type Split struct {
	Before        []*models.CleanedTransaction
	After         []*models.CleanedTransaction
	ReferenceDate time.Time
}

// SplitByReferenceDate partitions records at the given reference date, or
// at max(invoice_date) minus three calendar months when explicit is nil.
// The resolved date is returned so every downstream recency computation
// uses the identical cutoff.
//
// A dataset spanning less than the offset leaves Before empty or tiny;
// that is not an error and the aggregators tolerate it.
func SplitByReferenceDate(records []*models.CleanedTransaction, explicit *time.Time) *Split {
	split := &Split{
		Before: make([]*models.CleanedTransaction, 0, len(records)),
		After:  make([]*models.CleanedTransaction, 0),
	}

	if explicit != nil {
		split.ReferenceDate = *explicit
	} else {
		var maxDate time.Time
		for _, record := range records {
			if record.InvoiceDate.After(maxDate) {
				maxDate = record.InvoiceDate
			}
		}
		if !maxDate.IsZero() {
			split.ReferenceDate = maxDate.AddDate(0, -DefaultReferenceOffsetMonths, 0)
		}
	}

	for _, record := range records {
		if record.InvoiceDate.After(split.ReferenceDate) {
			split.After = append(split.After, record)
		} else {
			split.Before = append(split.Before, record)
		}
	}

	return split
}
