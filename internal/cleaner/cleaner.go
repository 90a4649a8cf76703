// Package cleaner implements the record-cleaning stage of the pipeline.
//
// Cleaning runs a fixed sequence of steps over the raw transaction table:
// drop records without a customer identifier, drop exact duplicates, drop
// non-positive unit prices, classify each record as purchase or
// cancellation and derive the per-record monetary quantities, then verify
// the purchase/cancellation mutual-exclusivity invariant. The step order
// matters: classification assumes duplicates and invalid prices are gone.
//
// The cleaner is a pure transform. It returns a new table plus per-step
// drop counts; it never logs or prints during the transform itself.
package cleaner

import (
	"time"

	"ecommerce-feature-pipeline/internal/models"
	"ecommerce-feature-pipeline/pkg/errors"
)

// Config controls which cleaning steps run. All steps are on by default;
// switching one off is only intended for debugging data-quality issues.
type Config struct {
	DropMissingCustomerID bool `json:"drop_missing_customer_id"`
	DropExactDuplicates   bool `json:"drop_exact_duplicates"`
	DropNonPositivePrices bool `json:"drop_non_positive_prices"`
}

// DefaultConfig returns the standard cleaning configuration
func DefaultConfig() *Config {
	return &Config{
		DropMissingCustomerID: true,
		DropExactDuplicates:   true,
		DropNonPositivePrices: true,
	}
}

// CleanStats records what each cleaning step removed, for diagnostic
// reporting by the caller.
type CleanStats struct {
	InputRecords         int       `json:"input_records"`
	MissingCustomerID    int       `json:"missing_customer_id"`
	DuplicatesRemoved    int       `json:"duplicates_removed"`
	InvalidPricesRemoved int       `json:"invalid_prices_removed"`
	OutputRecords        int       `json:"output_records"`
	Purchases            int       `json:"purchases"`
	Cancellations        int       `json:"cancellations"`
	MinInvoiceDate       time.Time `json:"min_invoice_date"`
	MaxInvoiceDate       time.Time `json:"max_invoice_date"`
}

// Cleaner removes invalid records and derives the cleaned transaction form.
type Cleaner struct {
	config *Config
}

// New creates a Cleaner with the given configuration
func New(config *Config) *Cleaner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cleaner{config: config}
}

// Clean runs the cleaning steps in order and returns the cleaned table.
// The returned error is non-nil only for the fatal integrity violation;
// every other anomaly is handled by dropping records and counting them.
func (c *Cleaner) Clean(records []*models.RawTransaction) ([]*models.CleanedTransaction, *CleanStats, error) {
	stats := &CleanStats{InputRecords: len(records)}

	kept := records
	if c.config.DropMissingCustomerID {
		kept, stats.MissingCustomerID = dropMissingCustomerID(kept)
	}
	if c.config.DropExactDuplicates {
		kept, stats.DuplicatesRemoved = dropExactDuplicates(kept)
	}
	if c.config.DropNonPositivePrices {
		kept, stats.InvalidPricesRemoved = dropNonPositivePrices(kept)
	}

	cleaned := make([]*models.CleanedTransaction, 0, len(kept))
	for _, record := range kept {
		ct := models.NewCleanedTransaction(record)
		cleaned = append(cleaned, ct)

		if ct.IsCancellation {
			stats.Cancellations++
		} else {
			stats.Purchases++
		}

		if stats.MinInvoiceDate.IsZero() || ct.InvoiceDate.Before(stats.MinInvoiceDate) {
			stats.MinInvoiceDate = ct.InvoiceDate
		}
		if ct.InvoiceDate.After(stats.MaxInvoiceDate) {
			stats.MaxInvoiceDate = ct.InvoiceDate
		}
	}
	stats.OutputRecords = len(cleaned)

	if err := checkExclusivity(cleaned); err != nil {
		return nil, stats, err
	}

	return cleaned, stats, nil
}

func dropMissingCustomerID(records []*models.RawTransaction) ([]*models.RawTransaction, int) {
	kept := make([]*models.RawTransaction, 0, len(records))
	dropped := 0
	for _, record := range records {
		if !record.HasCustomerID() {
			dropped++
			continue
		}
		kept = append(kept, record)
	}
	return kept, dropped
}

func dropExactDuplicates(records []*models.RawTransaction) ([]*models.RawTransaction, int) {
	seen := make(map[string]bool, len(records))
	kept := make([]*models.RawTransaction, 0, len(records))
	dropped := 0
	for _, record := range records {
		key := record.DuplicateKey()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, record)
	}
	return kept, dropped
}

func dropNonPositivePrices(records []*models.RawTransaction) ([]*models.RawTransaction, int) {
	kept := make([]*models.RawTransaction, 0, len(records))
	dropped := 0
	for _, record := range records {
		if !record.UnitPrice.IsPositive() {
			dropped++
			continue
		}
		kept = append(kept, record)
	}
	return kept, dropped
}

// checkExclusivity enforces the hard invariant: a cancellation record must
// carry no purchase quantity and a purchase record no cancel quantity. A
// violation means the upstream data shape or the classification logic is
// wrong, so the pipeline halts rather than aggregating bad lanes.
func checkExclusivity(records []*models.CleanedTransaction) error {
	violations := 0
	for _, record := range records {
		if !record.CheckExclusivity() {
			violations++
		}
	}

	if violations > 0 {
		return errors.IntegrityError(
			errors.CodeInvariantViolated,
			"cancellation_purchase_exclusivity",
			violations,
		)
	}

	return nil
}
