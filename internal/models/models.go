// Package models defines the typed records flowing through the feature
// pipeline: raw invoice-level transactions as loaded from disk, cleaned
// transactions with derived purchase/cancellation quantities, and the
// customer-level feature rows produced by the aggregation stages.
//
// Records are validated once at the load boundary; every later stage
// operates on the typed structures and never re-parses strings.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction represents one invoice line item as loaded from the raw
// transaction log. CustomerID may be empty: the dataset contains anonymous
// checkouts, which the cleaner drops.
type RawTransaction struct {
	InvoiceNo   string          `json:"invoice_no" csv:"invoiceno"`
	StockCode   string          `json:"stock_code" csv:"stockcode"`
	CustomerID  string          `json:"customer_id" csv:"customerid"`
	Quantity    int64           `json:"quantity" csv:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" csv:"unitprice"`
	InvoiceDate time.Time       `json:"invoice_date" csv:"invoicedate"`
}

// NewRawTransaction creates a new RawTransaction instance
func NewRawTransaction(invoiceNo, stockCode, customerID string, quantity int64, unitPrice decimal.Decimal, invoiceDate time.Time) *RawTransaction {
	return &RawTransaction{
		InvoiceNo:   invoiceNo,
		StockCode:   stockCode,
		CustomerID:  customerID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		InvoiceDate: invoiceDate,
	}
}

// Validate performs basic validation on the RawTransaction.
// A missing customer ID or a non-positive unit price is NOT a validation
// error here: both are legitimate raw-data states that the cleaner handles
// by dropping the record.
func (t *RawTransaction) Validate() error {
	if strings.TrimSpace(t.InvoiceNo) == "" {
		return fmt.Errorf("invoice number cannot be empty")
	}

	if strings.TrimSpace(t.StockCode) == "" {
		return fmt.Errorf("stock code cannot be empty")
	}

	if t.InvoiceDate.IsZero() {
		return fmt.Errorf("invoice date cannot be zero")
	}

	return nil
}

// HasCustomerID reports whether the record carries a usable customer key.
func (t *RawTransaction) HasCustomerID() bool {
	return strings.TrimSpace(t.CustomerID) != ""
}

// IsCancellationInvoice reports whether the invoice number marks a
// cancellation ("C"-prefixed in this dataset).
func (t *RawTransaction) IsCancellationInvoice() bool {
	return strings.HasPrefix(strings.TrimSpace(t.InvoiceNo), "C")
}

// DuplicateKey returns a key covering every raw field, used for
// exact-duplicate removal.
func (t *RawTransaction) DuplicateKey() string {
	return strings.Join([]string{
		t.InvoiceNo,
		t.StockCode,
		t.CustomerID,
		strconv.FormatInt(t.Quantity, 10),
		t.UnitPrice.String(),
		t.InvoiceDate.Format(time.RFC3339),
	}, "|")
}

// String returns a string representation of the RawTransaction
func (t *RawTransaction) String() string {
	return fmt.Sprintf("RawTransaction{Invoice: %s, Stock: %s, Customer: %s, Qty: %d, Price: %s, Date: %s}",
		t.InvoiceNo, t.StockCode, t.CustomerID, t.Quantity, t.UnitPrice.String(), t.InvoiceDate.Format("2006-01-02"))
}

// Equals compares two RawTransaction instances for equality
func (t *RawTransaction) Equals(other *RawTransaction) bool {
	if other == nil {
		return false
	}

	return t.InvoiceNo == other.InvoiceNo &&
		t.StockCode == other.StockCode &&
		t.CustomerID == other.CustomerID &&
		t.Quantity == other.Quantity &&
		t.UnitPrice.Equal(other.UnitPrice) &&
		t.InvoiceDate.Equal(other.InvoiceDate)
}

// CleanedTransaction is a RawTransaction with the quantities and amounts
// split into purchase and cancellation lanes. Exactly one lane is non-zero
// per record; the cleaner enforces this as a fatal integrity check.
type CleanedTransaction struct {
	RawTransaction

	IsCancellation bool            `json:"is_cancellation"`
	PurchaseQty    int64           `json:"purchase_qty"`
	CancelQty      int64           `json:"cancel_qty"`
	PurchaseAmount decimal.Decimal `json:"purchase_amnt"`
	CancelAmount   decimal.Decimal `json:"cancel_amnt"`
	MonthBucket    string          `json:"month_bucket"`
}

// NewCleanedTransaction derives the cleaned form of a raw record:
// cancellation classification from the invoice prefix, clipped
// purchase/cancel quantities, their monetary amounts, a trimmed invoice
// number and the calendar month bucket.
func NewCleanedTransaction(raw *RawTransaction) *CleanedTransaction {
	cleaned := &CleanedTransaction{RawTransaction: *raw}
	cleaned.InvoiceNo = strings.TrimSpace(raw.InvoiceNo)
	cleaned.IsCancellation = strings.HasPrefix(cleaned.InvoiceNo, "C")

	if raw.Quantity > 0 {
		cleaned.PurchaseQty = raw.Quantity
	} else {
		cleaned.CancelQty = -raw.Quantity
	}

	qtyDec := decimal.NewFromInt(cleaned.PurchaseQty)
	cleaned.PurchaseAmount = qtyDec.Mul(raw.UnitPrice)
	cancelDec := decimal.NewFromInt(cleaned.CancelQty)
	cleaned.CancelAmount = cancelDec.Mul(raw.UnitPrice)

	cleaned.MonthBucket = raw.InvoiceDate.Format("2006-01")

	return cleaned
}

// CheckExclusivity verifies the purchase/cancellation mutual-exclusivity
// invariant for this record.
func (c *CleanedTransaction) CheckExclusivity() bool {
	if c.IsCancellation {
		return c.PurchaseQty == 0
	}
	return c.CancelQty == 0
}

// CustomerPurchaseFeatures holds the per-customer purchase roll-up computed
// from the feature-eligible partition. Day-granularity fields are measured
// against the reference date the splitter resolved.
type CustomerPurchaseFeatures struct {
	CustomerID             string          `json:"customer_id" csv:"customer_id"`
	TotalPurchase          decimal.Decimal `json:"total_purchase" csv:"total_purchase"`
	CountOrders            int             `json:"count_orders" csv:"count_orders"`
	TotalItems             int64           `json:"tot_items" csv:"tot_items"`
	FirstPurchaseDate      time.Time       `json:"first_purchase_date" csv:"first_purchase_date"`
	LastPurchaseDate       time.Time       `json:"last_purchase_date" csv:"last_purchase_date"`
	NumUniqueProducts      int             `json:"num_unique_products" csv:"num_unique_products"`
	AvgOrderValue          decimal.Decimal `json:"avg_order_val" csv:"avg_order_val"`
	AvgItemsPerOrder       float64         `json:"avg_items_per_order" csv:"avg_items_per_order"`
	ProductDiversityRatio  float64         `json:"product_diversity_ratio" csv:"product_diversity_ratio"`
	MaxOrderValue          decimal.Decimal `json:"max_order_val" csv:"max_order_val"`
	MinOrderValue          decimal.Decimal `json:"min_order_val" csv:"min_order_val"`
	StdOrderValue          float64         `json:"std_order_val" csv:"std_order_val"`
	DaysSinceLastPurchase  int             `json:"days_since_last_purchase" csv:"days_since_last_purchase"`
	DaysSinceFirstPurchase int             `json:"days_since_first_purchase" csv:"days_since_first_purchase"`
	PurchaseSpanDays       int             `json:"purchase_span" csv:"purchase_span"`
	AvgDaysBetweenOrders   float64         `json:"avg_days_between_orders" csv:"avg_days_between_orders"`
}

// CustomerCancellationFeatures holds the per-customer cancellation roll-up.
// Customers without any cancellation do not get a row here; absence is
// filled in by the merge stage, not by a zero row.
type CustomerCancellationFeatures struct {
	CustomerID                string          `json:"customer_id" csv:"customer_id"`
	CancellationCount         int             `json:"total_cancellation_count" csv:"total_cancellation_count"`
	TotalCancelAmount         decimal.Decimal `json:"total_cancellation_amnt" csv:"total_cancellation_amnt"`
	TotalCancelQty            int64           `json:"total_cancellation_qty" csv:"total_cancellation_qty"`
	LastCancellationDate      time.Time       `json:"last_cancellation_date" csv:"last_cancellation_date"`
	DaysSinceLastCancellation int             `json:"days_since_last_cancellation" csv:"days_since_last_cancellation"`
}

// CustomerFeatureRow is the final output row: the left join of purchase and
// cancellation features plus the derived cross-feature ratios. Exactly one
// row exists per customer with at least one purchase before the reference
// date.
type CustomerFeatureRow struct {
	CustomerPurchaseFeatures

	CancellationCount         int             `json:"total_cancellation_count" csv:"total_cancellation_count"`
	TotalCancelAmount         decimal.Decimal `json:"total_cancellation_amnt" csv:"total_cancellation_amnt"`
	TotalCancelQty            int64           `json:"total_cancellation_qty" csv:"total_cancellation_qty"`
	DaysSinceLastCancellation int             `json:"days_since_last_cancellation" csv:"days_since_last_cancellation"`

	CancellationRate    float64 `json:"cancellation_rate" csv:"cancellation_rate"`
	OrderCompletionRate float64 `json:"order_completion_rate" csv:"order_completion_rate"`
	ReturnPurchaseRatio float64 `json:"return_purchase_ratio" csv:"return_purchase_ratio"`

	// Churned is the optional label derived from the post-reference
	// partition: 1 if the customer made no purchase after the cutoff.
	// Populated only when label derivation is requested.
	Churned *int `json:"churned,omitempty" csv:"churned"`
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseQuantityFromString parses an integer quantity, tolerating a decimal
// point with a zero fraction (spreadsheet exports write "24.0").
func ParseQuantityFromString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("quantity string cannot be empty")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity format '%s': %w", s, err)
	}
	n := int64(f)
	if float64(n) != f {
		return 0, fmt.Errorf("quantity '%s' is not a whole number", s)
	}
	return n, nil
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	// Common time formats used in transaction log exports
	formats := []string{
		time.RFC3339,             // "2006-01-02T15:04:05Z07:00"
		"2006-01-02 15:04:05",    // "2006-01-02 15:04:05"
		"2006-01-02T15:04:05",    // "2006-01-02T15:04:05"
		"2006-01-02 15:04",       // "2006-01-02 15:04"
		"2006-01-02",             // "2006-01-02"
		"01/02/2006 15:04:05",    // "01/02/2006 15:04:05"
		"1/2/2006 15:04",         // "12/1/2010 8:26" (raw retail export)
		"01/02/2006",             // "01/02/2006"
		"2006/01/02",             // "2006/01/02"
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// CreateRawTransactionFromCSV creates a RawTransaction from CSV field values
func CreateRawTransactionFromCSV(invoiceNo, stockCode, customerID, quantityStr, unitPriceStr, invoiceDateStr string) (*RawTransaction, error) {
	quantity, err := ParseQuantityFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity in CSV: %w", err)
	}

	unitPrice, err := ParseDecimalFromString(unitPriceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid unit price in CSV: %w", err)
	}

	invoiceDate, err := ParseTimeWithFormats(invoiceDateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice date in CSV: %w", err)
	}

	transaction := NewRawTransaction(
		strings.TrimSpace(invoiceNo),
		strings.TrimSpace(stockCode),
		strings.TrimSpace(customerID),
		quantity,
		unitPrice,
		invoiceDate,
	)

	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}

	return transaction, nil
}

// DaysBetween returns the whole number of days from a to b, truncating
// fractional days the way the day-granularity recency features require.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
