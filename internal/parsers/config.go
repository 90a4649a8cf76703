package parsers

import (
	"fmt"
	"strings"
)

// TransactionFileConfig holds configuration for parsing raw transaction-log
// CSV files. Column names are matched after canonicalization, so
// "InvoiceNo", "invoice no" and "invoiceno" all resolve to the same column.
type TransactionFileConfig struct {
	InvoiceNoColumn   string            `json:"invoice_no_column"`
	StockCodeColumn   string            `json:"stock_code_column"`
	CustomerIDColumn  string            `json:"customer_id_column"`
	QuantityColumn    string            `json:"quantity_column"`
	UnitPriceColumn   string            `json:"unit_price_column"`
	InvoiceDateColumn string            `json:"invoice_date_column"`
	HasHeader         bool              `json:"has_header"`
	Delimiter         rune              `json:"delimiter"`
	ColumnAliases     map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks if the transaction file configuration is valid
func (tfc *TransactionFileConfig) Validate() error {
	required := map[string]string{
		"invoice number": tfc.InvoiceNoColumn,
		"stock code":     tfc.StockCodeColumn,
		"customer ID":    tfc.CustomerIDColumn,
		"quantity":       tfc.QuantityColumn,
		"unit price":     tfc.UnitPriceColumn,
		"invoice date":   tfc.InvoiceDateColumn,
	}

	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s column cannot be empty", name)
		}
	}

	return nil
}

// GetColumnName returns the configured column name for a standard field,
// checking aliases first.
func (tfc *TransactionFileConfig) GetColumnName(standardName string) string {
	if alias, exists := tfc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "invoice_no":
		return tfc.InvoiceNoColumn
	case "stock_code":
		return tfc.StockCodeColumn
	case "customer_id":
		return tfc.CustomerIDColumn
	case "quantity":
		return tfc.QuantityColumn
	case "unit_price":
		return tfc.UnitPriceColumn
	case "invoice_date":
		return tfc.InvoiceDateColumn
	default:
		return standardName
	}
}

// DefaultTransactionFileConfig returns a configuration matching the common
// online-retail export layout.
func DefaultTransactionFileConfig() *TransactionFileConfig {
	return &TransactionFileConfig{
		InvoiceNoColumn:   "invoiceno",
		StockCodeColumn:   "stockcode",
		CustomerIDColumn:  "customerid",
		QuantityColumn:    "quantity",
		UnitPriceColumn:   "unitprice",
		InvoiceDateColumn: "invoicedate",
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases:     make(map[string]string),
	}
}
