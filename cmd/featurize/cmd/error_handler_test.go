package cmd

import (
	"fmt"
	"testing"

	"ecommerce-feature-pipeline/pkg/errors"
	"ecommerce-feature-pipeline/pkg/logger"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantReported bool
	}{
		{"nil error", nil, 0, true},
		{"handled pipeline failure", &exitCodeError{code: 5}, 5, true},
		{"flag validation error", fmt.Errorf("input is required"), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, reported := ExitCode(tt.err)
			if code != tt.wantCode || reported != tt.wantReported {
				t.Errorf("ExitCode() = (%d, %v), want (%d, %v)",
					code, reported, tt.wantCode, tt.wantReported)
			}
		})
	}
}

func TestHandleError_PipelineExitCodes(t *testing.T) {
	handler := &CLIErrorHandler{logger: logger.NewSilentLogger()}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"file error", errors.FileError(errors.CodeFileNotFound, "missing.csv", nil), 2},
		{"validation error", errors.ValidationError(errors.CodeMissingField, "input_file", "", nil), 3},
		{"integrity error", errors.IntegrityError(errors.CodeInvariantViolated, "cancellation_purchase_exclusivity", 2), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.HandleError(tt.err); got != tt.want {
				t.Errorf("HandleError() = %d, want %d", got, tt.want)
			}
		})
	}
}
