package cleaner

import (
	"testing"
	"time"

	"ecommerce-feature-pipeline/internal/models"
	"ecommerce-feature-pipeline/pkg/errors"

	"github.com/shopspring/decimal"
)

func raw(invoiceNo, stockCode, customerID string, quantity int64, price string, date string) *models.RawTransaction {
	d, err := time.Parse("2006-01-02 15:04", date)
	if err != nil {
		panic(err)
	}
	return &models.RawTransaction{
		InvoiceNo:   invoiceNo,
		StockCode:   stockCode,
		CustomerID:  customerID,
		Quantity:    quantity,
		UnitPrice:   decimal.RequireFromString(price),
		InvoiceDate: d,
	}
}

func TestClean_DropsMissingCustomerID(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("536366", "71053", "", 4, "3.39", "2010-12-01 08:28"),
		raw("536367", "84406B", "   ", 2, "2.75", "2010-12-01 08:34"),
	}

	cleaned, stats, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 record, got %d", len(cleaned))
	}
	if stats.MissingCustomerID != 2 {
		t.Errorf("MissingCustomerID = %d, want 2", stats.MissingCustomerID)
	}
	if cleaned[0].CustomerID != "17850" {
		t.Errorf("kept wrong record: %s", cleaned[0].CustomerID)
	}
}

func TestClean_DropsExactDuplicates(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		// same invoice and product but a different quantity is not a duplicate
		raw("536365", "85123A", "17850", 3, "2.55", "2010-12-01 08:26"),
	}

	cleaned, stats, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 records, got %d", len(cleaned))
	}
	if stats.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", stats.DuplicatesRemoved)
	}
}

func TestClean_DropsNonPositivePrices(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("536366", "22752", "17850", 1, "0", "2010-12-01 08:28"),
		raw("536367", "21730", "17850", 1, "-1.25", "2010-12-01 08:34"),
	}

	cleaned, stats, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 record, got %d", len(cleaned))
	}
	if stats.InvalidPricesRemoved != 2 {
		t.Errorf("InvalidPricesRemoved = %d, want 2", stats.InvalidPricesRemoved)
	}
}

func TestClean_ClassifiesAndCounts(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("536368", "22960", "13047", 12, "4.25", "2011-01-15 10:03"),
		raw("C536379", "22960", "13047", -2, "4.25", "2011-02-02 09:41"),
	}

	cleaned, stats, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if stats.Purchases != 2 || stats.Cancellations != 1 {
		t.Errorf("Purchases/Cancellations = %d/%d, want 2/1", stats.Purchases, stats.Cancellations)
	}

	wantMin, _ := time.Parse("2006-01-02 15:04", "2010-12-01 08:26")
	wantMax, _ := time.Parse("2006-01-02 15:04", "2011-02-02 09:41")
	if !stats.MinInvoiceDate.Equal(wantMin) {
		t.Errorf("MinInvoiceDate = %v, want %v", stats.MinInvoiceDate, wantMin)
	}
	if !stats.MaxInvoiceDate.Equal(wantMax) {
		t.Errorf("MaxInvoiceDate = %v, want %v", stats.MaxInvoiceDate, wantMax)
	}

	cancel := cleaned[2]
	if !cancel.IsCancellation {
		t.Fatal("expected C-invoice record to be a cancellation")
	}
	if cancel.CancelQty != 2 {
		t.Errorf("CancelQty = %d, want 2", cancel.CancelQty)
	}
	if got := cancel.CancelAmount.StringFixed(2); got != "8.50" {
		t.Errorf("CancelAmount = %s, want 8.50", got)
	}
}

func TestClean_ExclusivityViolationIsFatal(t *testing.T) {
	// A negative quantity on a non-cancellation invoice puts a purchase
	// record in the cancel lane, which must halt the pipeline.
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("536366", "85123A", "17850", -3, "2.55", "2010-12-01 08:27"),
		raw("536367", "71053", "17850", -1, "3.39", "2010-12-01 08:28"),
	}

	_, _, err := New(nil).Clean(records)
	if err == nil {
		t.Fatal("expected an integrity error, got nil")
	}

	pe, ok := errors.AsPipelineError(err)
	if !ok {
		t.Fatalf("expected a PipelineError, got %T", err)
	}
	if pe.Category != errors.CategoryIntegrity {
		t.Errorf("Category = %s, want %s", pe.Category, errors.CategoryIntegrity)
	}
	if !pe.IsFatal() {
		t.Error("integrity violation should be fatal")
	}
	if got := pe.Context["violating_records"]; got != 2 {
		t.Errorf("violating_records = %v, want 2", got)
	}
}

func TestClean_StepOrder(t *testing.T) {
	// The duplicate pair here would also fail the price filter; the
	// duplicate step runs first, so the stats attribute one drop to each.
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "0", "2010-12-01 08:26"),
		raw("536365", "85123A", "17850", 6, "0", "2010-12-01 08:26"),
	}

	cleaned, stats, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(cleaned) != 0 {
		t.Fatalf("expected 0 records, got %d", len(cleaned))
	}
	if stats.DuplicatesRemoved != 1 || stats.InvalidPricesRemoved != 1 {
		t.Errorf("DuplicatesRemoved/InvalidPricesRemoved = %d/%d, want 1/1",
			stats.DuplicatesRemoved, stats.InvalidPricesRemoved)
	}
}

func TestClean_IdempotentOnCleanData(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "17850", 6, "2.55", "2010-12-01 08:26"),
		raw("C536379", "22960", "13047", -2, "4.25", "2011-02-02 09:41"),
	}

	first, _, err := New(nil).Clean(records)
	if err != nil {
		t.Fatalf("first Clean() error = %v", err)
	}

	rawAgain := make([]*models.RawTransaction, len(first))
	for i, ct := range first {
		r := ct.RawTransaction
		rawAgain[i] = &r
	}

	second, stats, err := New(nil).Clean(rawAgain)
	if err != nil {
		t.Fatalf("second Clean() error = %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("second pass changed record count: %d vs %d", len(second), len(first))
	}
	if stats.MissingCustomerID+stats.DuplicatesRemoved+stats.InvalidPricesRemoved != 0 {
		t.Errorf("second pass dropped records: %+v", stats)
	}
	for i := range first {
		if !first[i].RawTransaction.Equals(&second[i].RawTransaction) {
			t.Errorf("record %d changed across passes", i)
		}
	}
}

func TestClean_DisabledSteps(t *testing.T) {
	records := []*models.RawTransaction{
		raw("536365", "85123A", "", 6, "2.55", "2010-12-01 08:26"),
	}

	cfg := &Config{DropMissingCustomerID: false, DropExactDuplicates: true, DropNonPositivePrices: true}
	cleaned, stats, err := New(cfg).Clean(records)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if len(cleaned) != 1 {
		t.Fatalf("expected record kept when step disabled, got %d records", len(cleaned))
	}
	if stats.MissingCustomerID != 0 {
		t.Errorf("MissingCustomerID = %d, want 0", stats.MissingCustomerID)
	}
}
