// Package pipeline orchestrates a full feature-engineering run: load raw
// transactions from disk, clean them, split at the reference date,
// aggregate purchase and cancellation behavior, and merge the feature
// table. Each stage is delegated to its own package; this package only
// wires them together, times them, and logs progress.
package pipeline

import (
	"context"
	"time"

	"ecommerce-feature-pipeline/internal/cleaner"
	"ecommerce-feature-pipeline/internal/features"
	"ecommerce-feature-pipeline/internal/models"
	"ecommerce-feature-pipeline/internal/parsers"
	"ecommerce-feature-pipeline/pkg/errors"
	"ecommerce-feature-pipeline/pkg/logger"
)

// Config carries the stage configurations for a feature service.
type Config struct {
	FileConfig    *parsers.TransactionFileConfig
	CleanerConfig *cleaner.Config
	Logger        logger.Logger
}

// DefaultConfig returns a Config with every stage at its defaults
func DefaultConfig() *Config {
	return &Config{
		FileConfig:    parsers.DefaultTransactionFileConfig(),
		CleanerConfig: cleaner.DefaultConfig(),
	}
}

// BuildRequest describes one feature-table build.
type BuildRequest struct {
	// InputFile is the path to the raw transaction CSV.
	InputFile string

	// ReferenceDate overrides the default cutoff of three months before
	// the newest invoice. Nil means use the default.
	ReferenceDate *time.Time

	// WithLabels attaches the churn label derived from post-cutoff
	// activity to every output row.
	WithLabels bool
}

// ResultSummary is the per-stage accounting for one build.
type ResultSummary struct {
	InputRecords   int           `json:"input_records"`
	SkippedRecords int           `json:"skipped_records"`
	CleanedRecords int           `json:"cleaned_records"`
	BeforeRecords  int           `json:"before_records"`
	AfterRecords   int           `json:"after_records"`
	CustomerRows   int           `json:"customer_rows"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// BuildResult is the output of one build: the feature table, the resolved
// reference date, and the diagnostics collected along the way.
type BuildResult struct {
	Features      []*models.CustomerFeatureRow
	ReferenceDate time.Time
	ParseStats    *parsers.ParseStats
	CleanStats    *cleaner.CleanStats
	Summary       ResultSummary
}

// FeatureService runs the pipeline end to end.
type FeatureService struct {
	config  *Config
	cleaner *cleaner.Cleaner
	logger  logger.Logger
}

// NewFeatureService creates a feature service from the given configuration
func NewFeatureService(config *Config) (*FeatureService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FileConfig == nil {
		config.FileConfig = parsers.DefaultTransactionFileConfig()
	}
	if err := config.FileConfig.Validate(); err != nil {
		return nil, err
	}
	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &FeatureService{
		config:  config,
		cleaner: cleaner.New(config.CleanerConfig),
		logger:  log.WithComponent("pipeline"),
	}, nil
}

// Build runs the full pipeline for one request.
func (s *FeatureService) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	if req == nil || req.InputFile == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "input_file", "", nil).
			WithSuggestion("Provide the path to the raw transaction CSV")
	}

	start := time.Now()
	result := &BuildResult{}

	s.logger.WithField("input_file", req.InputFile).Info("Starting feature build")

	raws, parseStats, err := s.loadTransactions(ctx, req.InputFile)
	if err != nil {
		return nil, err
	}
	result.ParseStats = parseStats
	result.Summary.InputRecords = parseStats.RecordsValid
	result.Summary.SkippedRecords = parseStats.ErrorCount

	cleanedRecords, cleanStats, err := s.cleaner.Clean(raws)
	if err != nil {
		s.logger.WithError(err).Error("Cleaning failed")
		return nil, err
	}
	result.CleanStats = cleanStats
	result.Summary.CleanedRecords = cleanStats.OutputRecords
	s.logger.WithFields(logger.Fields{
		"input":            cleanStats.InputRecords,
		"output":           cleanStats.OutputRecords,
		"missing_customer": cleanStats.MissingCustomerID,
		"duplicates":       cleanStats.DuplicatesRemoved,
		"invalid_prices":   cleanStats.InvalidPricesRemoved,
	}).Info("Cleaning complete")

	if len(cleanedRecords) == 0 {
		return nil, errors.ValidationError(errors.CodeEmptyDataset, "transactions", "", nil).
			WithSuggestion("Check that the input file contains usable records with customer IDs and positive prices")
	}

	split := features.SplitByReferenceDate(cleanedRecords, req.ReferenceDate)
	result.ReferenceDate = split.ReferenceDate
	result.Summary.BeforeRecords = len(split.Before)
	result.Summary.AfterRecords = len(split.After)
	s.logger.WithFields(logger.Fields{
		"reference_date": split.ReferenceDate.Format("2006-01-02"),
		"before":         len(split.Before),
		"after":          len(split.After),
	}).Info("Reference-date split complete")

	purchases := features.AggregatePurchases(split.Before, split.ReferenceDate)
	cancellations := features.AggregateCancellations(split.Before, split.ReferenceDate)
	s.logger.WithFields(logger.Fields{
		"purchase_customers":     len(purchases),
		"cancellation_customers": len(cancellations),
	}).Info("Aggregation complete")

	result.Features = features.MergeFeatures(purchases, cancellations)
	if req.WithLabels {
		features.AttachChurnLabels(result.Features, split.After)
	}
	result.Summary.CustomerRows = len(result.Features)
	result.Summary.ProcessingTime = time.Since(start)

	s.logger.WithFields(logger.Fields{
		"customers": len(result.Features),
		"duration":  result.Summary.ProcessingTime.String(),
	}).Info("Feature build complete")

	return result, nil
}

func (s *FeatureService) loadTransactions(ctx context.Context, filePath string) ([]*models.RawTransaction, *parsers.ParseStats, error) {
	loader, err := parsers.NewTransactionLoaderWithLogger(s.config.FileConfig, s.logger)
	if err != nil {
		return nil, nil, err
	}

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "load_transactions",
		Logger:    s.logger,
	})

	raws, stats, err := loader.LoadTransactionsWithContext(ctx, filePath)
	if err != nil {
		tracker.CompleteWithError(err)
		return nil, nil, err
	}
	tracker.Add(int64(stats.RecordsValid))
	tracker.Complete()

	if stats.ErrorCount > 0 {
		s.logger.WithFields(logger.Fields{
			"skipped": stats.ErrorCount,
			"samples": stats.GetSampleErrors(3),
		}).Warn("Some records could not be parsed and were skipped")
	}

	return raws, stats, nil
}
