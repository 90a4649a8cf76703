package parsers

import (
	"context"
	"fmt"
	"io"

	"ecommerce-feature-pipeline/internal/models"
	"ecommerce-feature-pipeline/pkg/errors"
	"ecommerce-feature-pipeline/pkg/logger"
)

// TransactionLoader reads raw transaction-log CSV files into typed records.
type TransactionLoader struct {
	*BaseParser
	config *TransactionFileConfig
	logger logger.Logger
}

// NewTransactionLoader creates a new TransactionLoader with the given configuration
func NewTransactionLoader(config *TransactionFileConfig) (*TransactionLoader, error) {
	return NewTransactionLoaderWithLogger(config, logger.GetGlobalLogger())
}

// NewTransactionLoaderWithLogger creates a TransactionLoader that logs
// through the given logger instead of the global one
func NewTransactionLoaderWithLogger(config *TransactionFileConfig, log logger.Logger) (*TransactionLoader, error) {
	if config == nil {
		config = DefaultTransactionFileConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"transaction_file_config",
			config,
			err,
		).WithSuggestion("Check the transaction file configuration values")
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}

	log = log.WithComponent("transaction_loader")
	log.WithFields(logger.Fields{
		"has_header": config.HasHeader,
		"delimiter":  string(config.Delimiter),
	}).Debug("Created transaction loader")

	return &TransactionLoader{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     log,
	}, nil
}

// LoadTransactions parses a CSV file containing raw transactions
func (tl *TransactionLoader) LoadTransactions(filePath string) ([]*models.RawTransaction, *ParseStats, error) {
	return tl.LoadTransactionsWithContext(context.Background(), filePath)
}

// LoadTransactionsWithContext parses raw transactions with cancellation support
func (tl *TransactionLoader) LoadTransactionsWithContext(ctx context.Context, filePath string) ([]*models.RawTransaction, *ParseStats, error) {
	tl.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "load_transactions",
	}).Info("Starting transaction load")

	file, reader, err := tl.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := tl.requiredHeaders()
	if err := tl.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		tl.logger.WithError(err).WithFields(logger.Fields{
			"file_path":        filePath,
			"required_headers": requiredHeaders,
		}).Error("Failed to read or validate headers")
		return nil, stats, err
	}

	var transactions []*models.RawTransaction

	for {
		if parseCtx.IsCancelled() {
			tl.logger.Warn("Transaction load was cancelled")
			return transactions, stats, errors.InternalError(
				errors.CodeUnexpectedError,
				"transaction_loading",
				fmt.Errorf("loading cancelled by context"),
			)
		}

		record, err := tl.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}

			parseError := errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: parseError.Message,
				Err:     parseError,
			})
			continue
		}

		stats.RecordsParsed++

		transaction, parseErr := tl.parseTransactionFromRecord(record, parseCtx, filePath)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		transactions = append(transactions, transaction)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	tl.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    len(stats.Errors),
	}).Info("Transaction load completed")

	if len(stats.Errors) > 0 {
		tl.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during load")
	}

	return transactions, stats, nil
}

// requiredHeaders returns the list of required canonical header names.
// The customer ID column is required to exist even though individual values
// may be empty.
func (tl *TransactionLoader) requiredHeaders() []string {
	return []string{
		tl.config.GetColumnName("invoice_no"),
		tl.config.GetColumnName("stock_code"),
		tl.config.GetColumnName("customer_id"),
		tl.config.GetColumnName("quantity"),
		tl.config.GetColumnName("unit_price"),
		tl.config.GetColumnName("invoice_date"),
	}
}

// parseTransactionFromRecord creates a RawTransaction from a CSV record
func (tl *TransactionLoader) parseTransactionFromRecord(record []string, parseCtx *ParseContext, filePath string) (*models.RawTransaction, *ParseError) {
	fields := make(map[string]string, 6)
	for _, standardName := range []string{"invoice_no", "stock_code", "customer_id", "quantity", "unit_price", "invoice_date"} {
		column := tl.config.GetColumnName(standardName)
		value, err := tl.GetFieldValue(record, parseCtx, column)
		if err != nil {
			parseError := errors.ParseError(
				errors.CodeMissingField,
				filePath,
				parseCtx.LineNumber,
				column,
				"",
				err,
			)
			return nil, &ParseError{
				Line:    parseCtx.LineNumber,
				Field:   column,
				Message: parseError.Message,
				Err:     parseError,
			}
		}
		fields[standardName] = value
	}

	transaction, err := models.CreateRawTransactionFromCSV(
		fields["invoice_no"],
		fields["stock_code"],
		fields["customer_id"],
		fields["quantity"],
		fields["unit_price"],
		fields["invoice_date"],
	)
	if err != nil {
		tl.logger.WithError(err).WithFields(logger.Fields{
			"line_number": parseCtx.LineNumber,
			"invoice_no":  fields["invoice_no"],
		}).Warn("Failed to create transaction from CSV data")

		parseError := errors.ParseError(
			errors.CodeInvalidData,
			filePath,
			parseCtx.LineNumber,
			"transaction_data",
			fmt.Sprintf("invoice=%s, qty=%s, price=%s, date=%s",
				fields["invoice_no"], fields["quantity"], fields["unit_price"], fields["invoice_date"]),
			err,
		).WithSuggestion("Check the data format for all fields")

		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Message: parseError.Message,
			Err:     parseError,
		}
	}

	return transaction, nil
}

// ValidateTransactionFile validates that a CSV file has the expected header
// layout and that its first records parse, without loading the whole file.
func (tl *TransactionLoader) ValidateTransactionFile(filePath string) error {
	tl.logger.WithField("file_path", filePath).Info("Validating transaction file format")

	file, reader, err := tl.OpenFile(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	if err := tl.ReadHeaders(reader, parseCtx, tl.requiredHeaders()); err != nil {
		return err
	}

	recordCount := 0
	maxValidation := 10
	var validationErrors []error

	for recordCount < maxValidation {
		record, err := tl.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			validationErrors = append(validationErrors, err)
			continue
		}

		recordCount++

		if _, parseErr := tl.parseTransactionFromRecord(record, parseCtx, filePath); parseErr != nil {
			validationErrors = append(validationErrors, parseErr.Err)
		}
	}

	if recordCount == 0 {
		return errors.ValidationError(
			errors.CodeMissingField,
			"data_records",
			0,
			nil,
		).WithSuggestion("Ensure the file contains data rows after the header")
	}

	if len(validationErrors) > 0 {
		return errors.ValidationError(
			errors.CodeInvalidData,
			"file_format",
			fmt.Sprintf("%d validation errors out of %d records tested", len(validationErrors), recordCount),
			validationErrors[0],
		).WithSuggestion("Fix the data format issues and try again")
	}

	tl.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"records_tested": recordCount,
	}).Info("Transaction file validation completed successfully")

	return nil
}
