package errors

import (
	"context"
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if ie, ok := As(err); ok {
		switch ie.Category {
		case CategoryValidation:
			return 2 // Invalid usage
		case CategoryConfig:
			return 7 // Configuration error
		case CategoryNetwork, CategoryParse:
			return 8 // Forum unreachable or returned garbage
		case CategoryFileSystem:
			return 11 // Output error
		case CategoryInternal:
			return 10
		}
	}

	return 1
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return ie.Error()
	}

	switch ie.Category {
	case CategoryConfig, CategoryValidation:
		if field, ok := ie.Context["field"]; ok {
			return fmt.Sprintf("%s: %v", ie.Message, field)
		}
		return ie.Message
	default:
		if u := URL(ie); u != "" {
			return fmt.Sprintf("%s: %s (%s)", ie.Category, ie.Message, u)
		}
		return fmt.Sprintf("%s: %s", ie.Category, ie.Message)
	}
}

// Log writes err to the adapter's logger with its classification attached.
func (a *CLIErrorAdapter) Log(err error) {
	if err == nil {
		return
	}
	ie, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{slog.String("category", string(ie.Category))}
	for k, v := range ie.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if ie.Cause != nil {
		attrs = append(attrs, slog.String("error", ie.Cause.Error()))
	}
	level := slog.LevelError
	if ie.Severity == SeverityWarning {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, ie.Message, attrs...)
}
