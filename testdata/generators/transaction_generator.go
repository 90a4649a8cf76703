package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceGenerator generates raw retail transaction CSV files shaped like
// the online-retail export the pipeline consumes: one row per invoice line
// item, cancellations prefixed with "C", and configurable rates of the
// data-quality problems the cleaner has to handle.
type InvoiceGenerator struct {
	Customers        int
	Invoices         int
	MaxLinesPerOrder int
	StartDate        time.Time
	EndDate          time.Time
	CancellationRate float64
	MissingIDRate    float64
	DuplicateRate    float64
	ZeroPriceRate    float64
	Seed             int64

	rng *rand.Rand
}

// InvoiceLine represents one CSV row of the generated export
type InvoiceLine struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int
	InvoiceDate time.Time
	UnitPrice   decimal.Decimal
	CustomerID  string
	Country     string
}

var stockCatalog = []struct {
	code        string
	description string
	price       float64
}{
	{"85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 2.55},
	{"71053", "WHITE METAL LANTERN", 3.39},
	{"84406B", "CREAM CUPID HEARTS COAT HANGER", 2.75},
	{"22752", "SET 7 BABUSHKA NESTING BOXES", 7.65},
	{"21730", "GLASS STAR FROSTED T-LIGHT HOLDER", 4.25},
	{"22633", "HAND WARMER UNION JACK", 1.85},
	{"22960", "JAM MAKING SET WITH JARS", 4.25},
	{"84879", "ASSORTED COLOUR BIRD ORNAMENT", 1.69},
	{"22423", "REGENCY CAKESTAND 3 TIER", 12.75},
	{"47566", "PARTY BUNTING", 4.95},
}

var countries = []string{
	"United Kingdom", "United Kingdom", "United Kingdom", "United Kingdom",
	"France", "Germany", "Netherlands", "EIRE",
}

func main() {
	var (
		output        = flag.String("output", "generated_transactions.csv", "Output CSV file path")
		customers     = flag.Int("customers", 100, "Number of distinct customers")
		invoices      = flag.Int("invoices", 1000, "Number of invoices to generate")
		maxLines      = flag.Int("max-lines", 8, "Maximum line items per invoice")
		startDate     = flag.String("start-date", "2010-12-01", "Start date (YYYY-MM-DD)")
		endDate       = flag.String("end-date", "2011-12-09", "End date (YYYY-MM-DD)")
		cancelRate    = flag.Float64("cancellation-rate", 0.02, "Fraction of invoices that are cancellations")
		missingIDRate = flag.Float64("missing-id-rate", 0.05, "Fraction of lines with a missing customer ID")
		dupRate       = flag.Float64("duplicate-rate", 0.01, "Fraction of lines duplicated verbatim")
		zeroPriceRate = flag.Float64("zero-price-rate", 0.005, "Fraction of lines with a zero unit price")
		seed          = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	generator := &InvoiceGenerator{
		Customers:        *customers,
		Invoices:         *invoices,
		MaxLinesPerOrder: *maxLines,
		StartDate:        start,
		EndDate:          end,
		CancellationRate: *cancelRate,
		MissingIDRate:    *missingIDRate,
		DuplicateRate:    *dupRate,
		ZeroPriceRate:    *zeroPriceRate,
		Seed:             *seed,
	}

	lines := generator.Generate()
	if err := generator.WriteToCSV(*output, lines); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}

	fmt.Printf("Generated %d invoice lines across %d invoices in %s\n", len(lines), *invoices, *output)
	fmt.Printf("Date range: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Seed used: %d\n", *seed)
}

// Generate produces all invoice lines, including the injected data-quality
// problems.
func (g *InvoiceGenerator) Generate() []InvoiceLine {
	g.rng = rand.New(rand.NewSource(g.Seed))
	duration := g.EndDate.Sub(g.StartDate)

	var lines []InvoiceLine
	for i := 0; i < g.Invoices; i++ {
		invoiceNo := fmt.Sprintf("%d", 536365+i)
		cancellation := g.rng.Float64() < g.CancellationRate
		if cancellation {
			invoiceNo = "C" + invoiceNo
		}

		customerID := fmt.Sprintf("%d", 12346+g.rng.Intn(g.Customers))
		country := countries[g.rng.Intn(len(countries))]
		invoiceDate := g.StartDate.Add(time.Duration(g.rng.Int63n(int64(duration))))

		lineCount := 1 + g.rng.Intn(g.MaxLinesPerOrder)
		for l := 0; l < lineCount; l++ {
			item := stockCatalog[g.rng.Intn(len(stockCatalog))]

			quantity := 1 + g.rng.Intn(24)
			if cancellation {
				quantity = -quantity
			}

			price := decimal.NewFromFloat(item.price)
			if g.rng.Float64() < g.ZeroPriceRate {
				price = decimal.Zero
			}

			line := InvoiceLine{
				InvoiceNo:   invoiceNo,
				StockCode:   item.code,
				Description: item.description,
				Quantity:    quantity,
				InvoiceDate: invoiceDate,
				UnitPrice:   price,
				CustomerID:  customerID,
				Country:     country,
			}
			if g.rng.Float64() < g.MissingIDRate {
				line.CustomerID = ""
			}

			lines = append(lines, line)
			if g.rng.Float64() < g.DuplicateRate {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// WriteToCSV writes the lines in the raw online-retail export layout
func (g *InvoiceGenerator) WriteToCSV(path string, lines []InvoiceLine) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"InvoiceNo", "StockCode", "Description", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID", "Country"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, line := range lines {
		record := []string{
			line.InvoiceNo,
			line.StockCode,
			line.Description,
			fmt.Sprintf("%d", line.Quantity),
			line.InvoiceDate.Format("1/2/2006 15:04"),
			line.UnitPrice.StringFixed(2),
			line.CustomerID,
			line.Country,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}
