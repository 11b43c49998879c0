// Package errors provides structured error handling for vigil.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Source errors (filesystem, watch backends)
//   - 3XX: Journal errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategorySource indicates filesystem and watch backend errors.
	CategorySource Category = "SOURCE"
	// CategoryJournal indicates journal persistence errors.
	CategoryJournal Category = "JOURNAL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid    = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound   = "ERR_102_CONFIG_NOT_FOUND"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Source errors (200-299)
	ErrCodeSourceUnavailable = "ERR_201_SOURCE_UNAVAILABLE"
	ErrCodeRootNotDirectory  = "ERR_202_ROOT_NOT_DIRECTORY"
	ErrCodeRootPermission    = "ERR_203_ROOT_PERMISSION"
	ErrCodeSourceOverflow    = "ERR_204_SOURCE_OVERFLOW"

	// Journal errors (300-399)
	ErrCodeJournalWrite   = "ERR_301_JOURNAL_WRITE"
	ErrCodeJournalLocked  = "ERR_302_JOURNAL_LOCKED"
	ErrCodeJournalCorrupt = "ERR_303_JOURNAL_CORRUPT"

	// Validation errors (400-499)
	ErrCodeInvalidPattern  = "ERR_401_INVALID_PATTERN"
	ErrCodeInvalidOptions  = "ERR_402_INVALID_OPTIONS"
	ErrCodeUnknownCategory = "ERR_403_UNKNOWN_CATEGORY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeHandlerPanic = "ERR_502_HANDLER_PANIC"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_SOURCE_UNAVAILABLE".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategorySource
	case '3':
		return CategoryJournal
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Nothing can be watched when the source itself is gone.
	switch code {
	case ErrCodeSourceUnavailable, ErrCodeRootNotDirectory:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Journal contention clears when the competing process exits.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeJournalWrite, ErrCodeJournalLocked:
		return true
	default:
		return false
	}
}
