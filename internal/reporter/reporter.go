// Package reporter renders feature-build results for people and for
// downstream consumers.
//
// Supported output formats:
//   - Console: human-readable run summary plus a describe-style overview
//     of the numeric feature columns
//   - CSV: one row per customer, the conventional hand-off format for
//     model training
//   - JSON: structured output for programmatic consumption
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"ecommerce-feature-pipeline/internal/cleaner"
	"ecommerce-feature-pipeline/internal/models"
	"ecommerce-feature-pipeline/internal/pipeline"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Console options
	IncludeOverview      bool `json:"include_overview"`
	IncludeCleaningStats bool `json:"include_cleaning_stats"`
	MaxSampleRows        int  `json:"max_sample_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeOverview:      true,
		IncludeCleaningStats: true,
		MaxSampleRows:        10,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxSampleRows < 0 {
		return fmt.Errorf("max sample rows cannot be negative, got %d", c.MaxSampleRows)
	}
	return nil
}

// ReportGenerator renders feature-build results.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the build result to the writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *pipeline.BuildResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("build result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *pipeline.BuildResult, writer io.Writer) error {
	fmt.Fprintf(writer, "CUSTOMER FEATURE REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(writer, "Reference Date: %s\n", result.ReferenceDate.Format("2006-01-02"))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Summary.ProcessingTime)

	fmt.Fprintf(writer, "=== RUN SUMMARY ===\n")
	fmt.Fprintf(writer, "%-28s %d\n", "Input records:", result.Summary.InputRecords)
	fmt.Fprintf(writer, "%-28s %d\n", "Skipped (unparseable):", result.Summary.SkippedRecords)
	fmt.Fprintf(writer, "%-28s %d\n", "Cleaned records:", result.Summary.CleanedRecords)
	fmt.Fprintf(writer, "%-28s %d\n", "Before reference date:", result.Summary.BeforeRecords)
	fmt.Fprintf(writer, "%-28s %d\n", "After reference date:", result.Summary.AfterRecords)
	fmt.Fprintf(writer, "%-28s %d\n\n", "Customer rows:", result.Summary.CustomerRows)

	if rg.config.IncludeCleaningStats && result.CleanStats != nil {
		cs := result.CleanStats
		fmt.Fprintf(writer, "=== CLEANING ===\n")
		fmt.Fprintf(writer, "%-28s %d\n", "Missing customer ID:", cs.MissingCustomerID)
		fmt.Fprintf(writer, "%-28s %d\n", "Exact duplicates:", cs.DuplicatesRemoved)
		fmt.Fprintf(writer, "%-28s %d\n", "Invalid prices:", cs.InvalidPricesRemoved)
		fmt.Fprintf(writer, "%-28s %d purchases, %d cancellations\n", "Classified:", cs.Purchases, cs.Cancellations)
		if !cs.MinInvoiceDate.IsZero() {
			fmt.Fprintf(writer, "%-28s %s to %s\n", "Date range:",
				cs.MinInvoiceDate.Format("2006-01-02"), cs.MaxInvoiceDate.Format("2006-01-02"))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeOverview && len(result.Features) > 0 {
		fmt.Fprintf(writer, "=== FEATURE OVERVIEW ===\n")
		fmt.Fprintln(writer, featureOverview(result.Features))
	}

	if rg.config.MaxSampleRows > 0 && len(result.Features) > 0 {
		fmt.Fprintf(writer, "=== SAMPLE ROWS ===\n")
		rg.printSampleRows(result.Features, writer)
	}

	return nil
}

// featureOverview builds a describe-style table (count, mean, stddev,
// quartiles) over the main numeric feature columns.
func featureOverview(rows []*models.CustomerFeatureRow) string {
	n := len(rows)
	totalPurchase := make([]float64, n)
	countOrders := make([]int, n)
	avgOrderValue := make([]float64, n)
	daysSinceLast := make([]int, n)
	cancellationRate := make([]float64, n)
	returnRatio := make([]float64, n)

	for i, row := range rows {
		totalPurchase[i] = row.TotalPurchase.InexactFloat64()
		countOrders[i] = row.CountOrders
		avgOrderValue[i] = row.AvgOrderValue.InexactFloat64()
		daysSinceLast[i] = row.DaysSinceLastPurchase
		cancellationRate[i] = row.CancellationRate
		returnRatio[i] = row.ReturnPurchaseRatio
	}

	df := dataframe.New(
		series.New(totalPurchase, series.Float, "total_purchase"),
		series.New(countOrders, series.Int, "count_orders"),
		series.New(avgOrderValue, series.Float, "avg_order_val"),
		series.New(daysSinceLast, series.Int, "days_since_last_purchase"),
		series.New(cancellationRate, series.Float, "cancellation_rate"),
		series.New(returnRatio, series.Float, "return_purchase_ratio"),
	)
	return df.Describe().String()
}

func (rg *ReportGenerator) printSampleRows(rows []*models.CustomerFeatureRow, writer io.Writer) {
	limit := rg.config.MaxSampleRows
	if limit > len(rows) {
		limit = len(rows)
	}

	fmt.Fprintf(writer, "%-12s %14s %8s %14s %10s %10s\n",
		"CUSTOMER", "TOTAL_PURCHASE", "ORDERS", "AVG_ORDER_VAL", "CANCEL_RT", "DAYS_LAST")
	for _, row := range rows[:limit] {
		fmt.Fprintf(writer, "%-12s %14s %8d %14s %10.3f %10d\n",
			row.CustomerID,
			row.TotalPurchase.StringFixed(2),
			row.CountOrders,
			row.AvgOrderValue.StringFixed(2),
			row.CancellationRate,
			row.DaysSinceLastPurchase)
	}
	if limit < len(rows) {
		fmt.Fprintf(writer, "... and %d more rows\n", len(rows)-limit)
	}
}

// jsonReport is the envelope for the JSON output format.
type jsonReport struct {
	GeneratedAt   time.Time                    `json:"generated_at"`
	ReferenceDate time.Time                    `json:"reference_date"`
	Summary       pipeline.ResultSummary       `json:"summary"`
	CleanStats    *cleaner.CleanStats          `json:"clean_stats,omitempty"`
	Features      []*models.CustomerFeatureRow `json:"features"`
}

func (rg *ReportGenerator) generateJSONReport(result *pipeline.BuildResult, writer io.Writer) error {
	report := jsonReport{
		GeneratedAt:   time.Now(),
		ReferenceDate: result.ReferenceDate,
		Summary:       result.Summary,
		Features:      result.Features,
	}
	if rg.config.IncludeCleaningStats {
		report.CleanStats = result.CleanStats
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (rg *ReportGenerator) generateCSVReport(result *pipeline.BuildResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	withLabels := len(result.Features) > 0 && result.Features[0].Churned != nil

	if rg.config.CSVHeaders {
		headers := featureCSVHeaders(withLabels)
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range result.Features {
		if err := csvWriter.Write(featureCSVRecord(row, withLabels)); err != nil {
			return fmt.Errorf("failed to write CSV record for customer %s: %w", row.CustomerID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func featureCSVHeaders(withLabels bool) []string {
	headers := []string{
		"customer_id",
		"total_purchase",
		"count_orders",
		"tot_items",
		"first_purchase_date",
		"last_purchase_date",
		"num_unique_products",
		"avg_order_val",
		"avg_items_per_order",
		"product_diversity_ratio",
		"max_order_val",
		"min_order_val",
		"std_order_val",
		"days_since_last_purchase",
		"days_since_first_purchase",
		"purchase_span",
		"avg_days_between_orders",
		"total_cancellation_count",
		"total_cancellation_amnt",
		"total_cancellation_qty",
		"days_since_last_cancellation",
		"cancellation_rate",
		"order_completion_rate",
		"return_purchase_ratio",
	}
	if withLabels {
		headers = append(headers, "churned")
	}
	return headers
}

func featureCSVRecord(row *models.CustomerFeatureRow, withLabels bool) []string {
	record := []string{
		row.CustomerID,
		row.TotalPurchase.StringFixed(2),
		strconv.Itoa(row.CountOrders),
		strconv.FormatInt(row.TotalItems, 10),
		row.FirstPurchaseDate.Format("2006-01-02 15:04:05"),
		row.LastPurchaseDate.Format("2006-01-02 15:04:05"),
		strconv.Itoa(row.NumUniqueProducts),
		row.AvgOrderValue.StringFixed(2),
		formatFloat(row.AvgItemsPerOrder),
		formatFloat(row.ProductDiversityRatio),
		row.MaxOrderValue.StringFixed(2),
		row.MinOrderValue.StringFixed(2),
		formatFloat(row.StdOrderValue),
		strconv.Itoa(row.DaysSinceLastPurchase),
		strconv.Itoa(row.DaysSinceFirstPurchase),
		strconv.Itoa(row.PurchaseSpanDays),
		formatFloat(row.AvgDaysBetweenOrders),
		strconv.Itoa(row.CancellationCount),
		row.TotalCancelAmount.StringFixed(2),
		strconv.FormatInt(row.TotalCancelQty, 10),
		strconv.Itoa(row.DaysSinceLastCancellation),
		formatFloat(row.CancellationRate),
		formatFloat(row.OrderCompletionRate),
		formatFloat(row.ReturnPurchaseRatio),
	}
	if withLabels {
		label := ""
		if row.Churned != nil {
			label = strconv.Itoa(*row.Churned)
		}
		record = append(record, label)
	}
	return record
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
