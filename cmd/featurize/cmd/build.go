package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecommerce-feature-pipeline/cmd/featurize/config"
	"ecommerce-feature-pipeline/internal/parsers"
	"ecommerce-feature-pipeline/internal/pipeline"
	"ecommerce-feature-pipeline/internal/reporter"
	"ecommerce-feature-pipeline/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the build command
var (
	inputFile     string
	outputFormat  string
	outputFile    string
	referenceDate string
	withLabels    bool
	keepDupes     bool
	maxSampleRows int
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the customer feature table from a transaction log",
	Long: `Build reads a raw invoice-level CSV, cleans it, splits it at the
reference date, and writes one feature row per customer.

The reference date defaults to three months before the newest invoice in
the file. Records at or before the cutoff feed the features; records
after it are used only for the optional churn label.

Examples:
  # Console summary with a describe-style feature overview
  featurize build --input transactions.csv

  # Feature table as CSV, ready for model training
  featurize build --input transactions.csv --output features.csv --output-format csv

  # Explicit cutoff and churn labels
  featurize build --input transactions.csv --reference-date 2011-09-09 --with-labels`,

	PreRunE: validateBuildFlags,
	RunE:    runBuild,

	// Errors are reported by main (or the CLI error handler for
	// pipeline failures); cobra should not print them again.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	// Required flags
	buildCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to raw transaction CSV file (required)")

	// Output flags
	buildCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	buildCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file path (default: stdout)")

	// Pipeline flags
	buildCmd.Flags().StringVarP(&referenceDate, "reference-date", "r", "", "reference date cutoff (YYYY-MM-DD, default: max date minus 3 months)")
	buildCmd.Flags().BoolVar(&withLabels, "with-labels", false, "attach churn labels derived from post-cutoff activity")
	buildCmd.Flags().BoolVar(&keepDupes, "keep-duplicates", false, "skip exact-duplicate removal during cleaning")
	buildCmd.Flags().IntVar(&maxSampleRows, "sample-rows", 10, "number of sample rows in the console report")

	buildCmd.MarkFlagRequired("input")

	// Bind flags to viper
	viper.BindPFlag("input", buildCmd.Flags().Lookup("input"))
	viper.BindPFlag("output-format", buildCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output", buildCmd.Flags().Lookup("output"))
	viper.BindPFlag("reference-date", buildCmd.Flags().Lookup("reference-date"))
	viper.BindPFlag("with-labels", buildCmd.Flags().Lookup("with-labels"))
	viper.BindPFlag("keep-duplicates", buildCmd.Flags().Lookup("keep-duplicates"))
	viper.BindPFlag("sample-rows", buildCmd.Flags().Lookup("sample-rows"))
}

func validateBuildFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	inputFile = viper.GetString("input")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output")
	referenceDate = viper.GetString("reference-date")
	withLabels = viper.GetBool("with-labels")
	keepDupes = viper.GetBool("keep-duplicates")
	maxSampleRows = viper.GetInt("sample-rows")

	if inputFile == "" {
		return fmt.Errorf("input is required")
	}
	if err := validateFileExists(inputFile, "transaction file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if referenceDate != "" {
		if _, err := time.Parse("2006-01-02", referenceDate); err != nil {
			return fmt.Errorf("invalid reference date format. Use YYYY-MM-DD: %w", err)
		}
	}

	if maxSampleRows < 0 {
		return fmt.Errorf("sample-rows cannot be negative")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if verbose {
		fmt.Fprintf(os.Stderr, "Starting feature build...\n")
		fmt.Fprintf(os.Stderr, "Input file: %s\n", inputFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	log, err := config.CreateLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobalLogger(log)
	errorHandler := NewCLIErrorHandler()

	pipelineConfig := config.CreatePipelineConfig(log, keepDupes)
	service, err := pipeline.NewFeatureService(pipelineConfig)
	if err != nil {
		return fmt.Errorf("failed to create feature service: %w", err)
	}

	// Pre-flight: check headers and sample the first records before
	// committing to a full load.
	preflight, err := parsers.NewTransactionLoaderWithLogger(pipelineConfig.FileConfig, log)
	if err != nil {
		return fmt.Errorf("failed to create transaction loader: %w", err)
	}
	if err := preflight.ValidateTransactionFile(inputFile); err != nil {
		return &exitCodeError{code: errorHandler.HandleError(err)}
	}

	request, err := config.CreateBuildRequest(inputFile, referenceDate, withLabels)
	if err != nil {
		return fmt.Errorf("failed to create build request: %w", err)
	}

	result, err := service.Build(ctx, request)
	if err != nil {
		return &exitCodeError{code: errorHandler.HandleError(err)}
	}

	reportConfig := config.CreateReportConfig(outputFormat, maxSampleRows)
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	writer := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	if err := generator.GenerateReport(result, writer); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Feature build completed: %d customers in %v\n",
			result.Summary.CustomerRows, result.Summary.ProcessingTime)
	}

	return nil
}
