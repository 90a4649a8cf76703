// Package config translates CLI flag values into the typed configurations
// of the pipeline stages.
package config

import (
	"fmt"
	"time"

	"ecommerce-feature-pipeline/internal/cleaner"
	"ecommerce-feature-pipeline/internal/parsers"
	"ecommerce-feature-pipeline/internal/pipeline"
	"ecommerce-feature-pipeline/internal/reporter"
	"ecommerce-feature-pipeline/pkg/logger"
)

// CreateLogger builds the CLI logger; verbose switches to debug level
func CreateLogger(verbose bool) (logger.Logger, error) {
	logConfig := logger.DefaultConfig()
	if verbose {
		logConfig.Level = logger.DebugLevel
	} else {
		logConfig.Level = logger.WarnLevel
	}
	return logger.NewLogger(logConfig)
}

// CreateTransactionFileConfig creates the loader configuration for the
// standard online-retail export layout. Header canonicalization already
// absorbs spacing, casing and unit-suffix variants, so no per-column
// overrides are needed for the common exports.
func CreateTransactionFileConfig() *parsers.TransactionFileConfig {
	return parsers.DefaultTransactionFileConfig()
}

// CreatePipelineConfig assembles the feature service configuration
func CreatePipelineConfig(log logger.Logger, keepDuplicates bool) *pipeline.Config {
	cleanerConfig := cleaner.DefaultConfig()
	cleanerConfig.DropExactDuplicates = !keepDuplicates

	return &pipeline.Config{
		FileConfig:    CreateTransactionFileConfig(),
		CleanerConfig: cleanerConfig,
		Logger:        log,
	}
}

// CreateBuildRequest builds the request from the flag values. An empty
// reference date means the pipeline derives the default cutoff.
func CreateBuildRequest(inputFile, referenceDate string, withLabels bool) (*pipeline.BuildRequest, error) {
	request := &pipeline.BuildRequest{
		InputFile:  inputFile,
		WithLabels: withLabels,
	}

	if referenceDate != "" {
		parsed, err := time.Parse("2006-01-02", referenceDate)
		if err != nil {
			return nil, fmt.Errorf("invalid reference date %q: %w", referenceDate, err)
		}
		request.ReferenceDate = &parsed
	}

	return request, nil
}

// CreateReportConfig builds the reporter configuration for the chosen format
func CreateReportConfig(outputFormat string, maxSampleRows int) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(outputFormat)
	config.MaxSampleRows = maxSampleRows
	return config
}
