package errors

import (
	"fmt"
	"log/slog"
)

// CLI exit codes form the orchestrator's contract with callers:
// 0 all packages succeeded, 1 run completed with package failures,
// 2 run aborted on a fatal tooling failure, 3 configuration or manifest
// error before any build started.
const (
	ExitOK             = 0
	ExitPackagesFailed = 1
	ExitAborted        = 2
	ExitConfig         = 3
)

// CLIErrorAdapter handles error presentation and exit code determination.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if dhe, ok := err.(*DochubError); ok {
		switch dhe.Category {
		case CategoryConfig, CategoryManifest, CategoryValidation, CategoryCycle:
			return ExitConfig
		case CategoryCompiler:
			return ExitAborted
		default:
			return ExitPackagesFailed
		}
	}
	return ExitPackagesFailed
}

// FormatError formats an error for user-facing display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	dhe, ok := err.(*DochubError)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return dhe.Error()
	}
	switch dhe.Category {
	case CategoryConfig, CategoryManifest, CategoryValidation:
		return dhe.Message
	default:
		return fmt.Sprintf("%s: %s", dhe.Category, dhe.Message)
	}
}

// LogError logs an error with level derived from severity.
func (a *CLIErrorAdapter) LogError(err error) {
	dhe, ok := err.(*DochubError)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []any{slog.String("category", string(dhe.Category))}
	if dhe.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	switch dhe.Severity {
	case SeverityInfo:
		a.logger.Info(dhe.Message, attrs...)
	case SeverityWarning:
		a.logger.Warn(dhe.Message, attrs...)
	default:
		a.logger.Error(dhe.Message, attrs...)
	}
}
