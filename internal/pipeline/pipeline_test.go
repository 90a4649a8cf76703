package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ecommerce-feature-pipeline/pkg/errors"
	"ecommerce-feature-pipeline/pkg/logger"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func silentService(t *testing.T, config *Config) *FeatureService {
	t.Helper()
	if config == nil {
		config = DefaultConfig()
	}
	config.Logger = logger.NewSilentLogger()
	service, err := NewFeatureService(config)
	if err != nil {
		t.Fatalf("NewFeatureService: %v", err)
	}
	return service
}

const retailFixture = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country
536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,12/1/2010 8:26,2.55,17850,United Kingdom
536365,71053,WHITE METAL LANTERN,3,12/1/2010 8:26,3.40,17850,United Kingdom
536366,84406B,CREAM CUPID HEARTS COAT HANGER,5,1/4/2011 9:01,3.00,17850,United Kingdom
C536379,85123A,WHITE HANGING HEART T-LIGHT HOLDER,-1,2/2/2011 9:41,5.00,17850,United Kingdom
536370,22633,HAND WARMER UNION JACK,2,1/12/2011 10:03,1.95,13047,United Kingdom
536400,85123A,WHITE HANGING HEART T-LIGHT HOLDER,4,5/10/2011 11:30,2.55,13047,United Kingdom
536401,22633,HAND WARMER UNION JACK,1,5/11/2011 12:00,1.95,,United Kingdom
536402,22633,HAND WARMER UNION JACK,1,5/11/2011 12:05,0,17850,United Kingdom
`

func TestBuild_EndToEnd(t *testing.T) {
	service := silentService(t, nil)
	ref := time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC)

	result, err := service.Build(context.Background(), &BuildRequest{
		InputFile:     writeFixture(t, retailFixture),
		ReferenceDate: &ref,
		WithLabels:    true,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !result.ReferenceDate.Equal(ref) {
		t.Errorf("ReferenceDate = %v, want %v", result.ReferenceDate, ref)
	}
	// 8 parsed, 1 dropped for missing customer ID, 1 for zero price
	if result.Summary.InputRecords != 8 {
		t.Errorf("InputRecords = %d, want 8", result.Summary.InputRecords)
	}
	if result.Summary.CleanedRecords != 6 {
		t.Errorf("CleanedRecords = %d, want 6", result.Summary.CleanedRecords)
	}
	if result.CleanStats.MissingCustomerID != 1 || result.CleanStats.InvalidPricesRemoved != 1 {
		t.Errorf("CleanStats = %+v", result.CleanStats)
	}
	// one record (536400) is after the March cutoff
	if result.Summary.BeforeRecords != 5 || result.Summary.AfterRecords != 1 {
		t.Errorf("Before/After = %d/%d, want 5/1",
			result.Summary.BeforeRecords, result.Summary.AfterRecords)
	}
	if len(result.Features) != 2 {
		t.Fatalf("expected 2 feature rows, got %d", len(result.Features))
	}

	rows := make(map[string]bool)
	for _, row := range result.Features {
		rows[row.CustomerID] = true
		if row.Churned == nil {
			t.Errorf("customer %s missing churn label", row.CustomerID)
		}
	}
	if !rows["17850"] || !rows["13047"] {
		t.Errorf("unexpected customers in output: %v", rows)
	}

	for _, row := range result.Features {
		switch row.CustomerID {
		case "17850":
			if row.CountOrders != 2 {
				t.Errorf("17850 CountOrders = %d, want 2", row.CountOrders)
			}
			if row.CancellationCount != 1 {
				t.Errorf("17850 CancellationCount = %d, want 1", row.CancellationCount)
			}
			// no purchase after the cutoff
			if *row.Churned != 1 {
				t.Errorf("17850 Churned = %d, want 1", *row.Churned)
			}
		case "13047":
			// purchases again in May
			if *row.Churned != 0 {
				t.Errorf("13047 Churned = %d, want 0", *row.Churned)
			}
		}
	}
}

func TestBuild_DefaultReferenceDate(t *testing.T) {
	service := silentService(t, nil)

	result, err := service.Build(context.Background(), &BuildRequest{
		InputFile: writeFixture(t, retailFixture),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// The two newest records are dropped during cleaning (missing customer,
	// zero price), so the cutoff derives from 2011-05-10 11:30.
	want := time.Date(2011, 2, 10, 11, 30, 0, 0, time.UTC)
	if !result.ReferenceDate.Equal(want) {
		t.Errorf("ReferenceDate = %v, want %v", result.ReferenceDate, want)
	}
}

func TestBuild_MissingInputFile(t *testing.T) {
	service := silentService(t, nil)

	_, err := service.Build(context.Background(), &BuildRequest{})
	if err == nil {
		t.Fatal("expected an error for a missing input path")
	}
	pe, ok := errors.AsPipelineError(err)
	if !ok || pe.Category != errors.CategoryValidation {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuild_NonexistentFile(t *testing.T) {
	service := silentService(t, nil)

	_, err := service.Build(context.Background(), &BuildRequest{InputFile: "/nonexistent/input.csv"})
	if err == nil {
		t.Fatal("expected an error for a nonexistent file")
	}
}

func TestBuild_EmptyDataset(t *testing.T) {
	service := silentService(t, nil)
	fixture := "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n" +
		"536365,85123A,HOLDER,6,12/1/2010 8:26,2.55,,United Kingdom\n"

	_, err := service.Build(context.Background(), &BuildRequest{InputFile: writeFixture(t, fixture)})
	if err == nil {
		t.Fatal("expected an error for a dataset with no usable records")
	}
	pe, ok := errors.AsPipelineError(err)
	if !ok || pe.Code != errors.CodeEmptyDataset {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuild_IntegrityViolationHalts(t *testing.T) {
	service := silentService(t, nil)
	// negative quantity on a non-cancellation invoice
	fixture := "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n" +
		"536365,85123A,HOLDER,-6,12/1/2010 8:26,2.55,17850,United Kingdom\n"

	_, err := service.Build(context.Background(), &BuildRequest{InputFile: writeFixture(t, fixture)})
	if err == nil {
		t.Fatal("expected a fatal integrity error")
	}
	pe, ok := errors.AsPipelineError(err)
	if !ok || !pe.IsFatal() {
		t.Errorf("expected a fatal PipelineError, got %v", err)
	}
}
