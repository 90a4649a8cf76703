package parsers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "transactions.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test CSV: %v", err)
	}
	return path
}

func TestCanonicalizeColumnName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"InvoiceNo", "invoiceno"},
		{"Invoice No", "invoice_no"},
		{"Unit Price (GBP)", "unit_price"},
		{"CustomerID", "customerid"},
		{"  Stock-Code  ", "stock_code"},
		{"quantity", "quantity"},
		{"Invoice__Date", "invoice_date"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalizeColumnName(tt.input); got != tt.want {
				t.Errorf("CanonicalizeColumnName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransactionLoader_LoadTransactions(t *testing.T) {
	csv := `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country
536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850,United Kingdom
536365,71053,WHITE METAL LANTERN,6,2010-12-01 08:26:00,3.39,17850,United Kingdom
C536379,D,Discount,-1,2010-12-01 09:41:00,27.50,14527,United Kingdom
536366,22633,HAND WARMER,6,2010-12-01 08:28:00,1.85,,United Kingdom`

	path := writeTempCSV(t, csv)

	loader, err := NewTransactionLoader(DefaultTransactionFileConfig())
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	transactions, stats, err := loader.LoadTransactions(path)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}

	if len(transactions) != 4 {
		t.Fatalf("loaded %d transactions, want 4", len(transactions))
	}
	if stats.RecordsValid != 4 {
		t.Errorf("RecordsValid = %d, want 4", stats.RecordsValid)
	}

	first := transactions[0]
	if first.InvoiceNo != "536365" || first.StockCode != "85123A" || first.CustomerID != "17850" {
		t.Errorf("unexpected first record: %s", first)
	}
	if first.Quantity != 6 {
		t.Errorf("Quantity = %d, want 6", first.Quantity)
	}

	// Missing customer ID loads as an empty string; dropping it is the
	// cleaner's job, not the loader's.
	last := transactions[3]
	if last.HasCustomerID() {
		t.Errorf("record without customer ID should load with empty CustomerID, got %q", last.CustomerID)
	}

	// Negative quantity passes through untouched
	if transactions[2].Quantity != -1 {
		t.Errorf("cancellation quantity = %d, want -1", transactions[2].Quantity)
	}
}

func TestTransactionLoader_SkipsMalformedRows(t *testing.T) {
	csv := `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID
536365,85123A,OK ROW,6,2010-12-01 08:26:00,2.55,17850
536366,85123B,BAD QTY,six,2010-12-01 08:26:00,2.55,17850
536367,85123C,BAD DATE,6,yesterday,2.55,17850
536368,85123D,OK ROW,2,2010-12-02 10:00:00,1.25,13047`

	path := writeTempCSV(t, csv)

	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	transactions, stats, err := loader.LoadTransactions(path)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}

	if len(transactions) != 2 {
		t.Errorf("loaded %d transactions, want 2 (malformed rows skipped)", len(transactions))
	}
	if stats.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", stats.ErrorCount)
	}
	if !stats.HasErrors() {
		t.Error("stats should report errors")
	}
}

func TestTransactionLoader_MissingRequiredColumn(t *testing.T) {
	csv := `InvoiceNo,StockCode,Quantity,UnitPrice,CustomerID
536365,85123A,6,2.55,17850`

	path := writeTempCSV(t, csv)

	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	if _, _, err := loader.LoadTransactions(path); err == nil {
		t.Error("expected error for file missing the invoice date column")
	}
}

func TestTransactionLoader_NormalizedHeaderVariants(t *testing.T) {
	// Headers with spaces and bracketed units canonicalize onto the same
	// columns as the run-together defaults.
	csv := `Invoice No,Stock Code,Quantity,Invoice Date,Unit Price (GBP),Customer ID
536365,85123A,6,2010-12-01 08:26:00,2.55,17850`

	path := writeTempCSV(t, csv)

	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	transactions, _, err := loader.LoadTransactions(path)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("loaded %d transactions, want 1", len(transactions))
	}
	if transactions[0].CustomerID != "17850" {
		t.Errorf("CustomerID = %q, want 17850", transactions[0].CustomerID)
	}
}

func TestTransactionLoader_FileNotFound(t *testing.T) {
	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	if _, _, err := loader.LoadTransactions("/nonexistent/file.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTransactionLoader_SkipsEmptyRows(t *testing.T) {
	csv := `InvoiceNo,StockCode,Quantity,InvoiceDate,UnitPrice,CustomerID
536365,85123A,6,2010-12-01 08:26:00,2.55,17850

,,,,,
536366,85123B,2,2010-12-02 10:00:00,1.25,13047`

	path := writeTempCSV(t, csv)

	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	transactions, _, err := loader.LoadTransactions(path)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	if len(transactions) != 2 {
		t.Errorf("loaded %d transactions, want 2 (empty rows skipped)", len(transactions))
	}
}

func TestValidateTransactionFile(t *testing.T) {
	good := `InvoiceNo,StockCode,Quantity,InvoiceDate,UnitPrice,CustomerID
536365,85123A,6,2010-12-01 08:26:00,2.55,17850`
	goodPath := writeTempCSV(t, good)

	loader, err := NewTransactionLoader(nil)
	if err != nil {
		t.Fatalf("NewTransactionLoader() error = %v", err)
	}

	if err := loader.ValidateTransactionFile(goodPath); err != nil {
		t.Errorf("ValidateTransactionFile() error = %v for valid file", err)
	}

	empty := `InvoiceNo,StockCode,Quantity,InvoiceDate,UnitPrice,CustomerID`
	emptyPath := writeTempCSV(t, empty)
	if err := loader.ValidateTransactionFile(emptyPath); err == nil {
		t.Error("expected error for header-only file")
	}
}

func TestTransactionFileConfig_Validate(t *testing.T) {
	valid := DefaultTransactionFileConfig()
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v for default config", err)
	}

	invalid := DefaultTransactionFileConfig()
	invalid.QuantityColumn = ""
	if err := invalid.Validate(); err == nil {
		t.Error("expected error for config with empty quantity column")
	}
}
