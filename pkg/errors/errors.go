// Package errors defines the structured error taxonomy used across the
// reconciliation engine. Every error carries a category, a machine-readable
// code, a human-readable message and optional context describing which
// entry/record was involved, so batch drivers can classify failures without
// string matching.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryImport     ErrorCategory = "import"
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "configuration"
	CategoryCommit     ErrorCategory = "commit"
	CategoryStorage    ErrorCategory = "storage"
	CategoryPattern    ErrorCategory = "pattern"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure mode within a category.
type ErrorCode string

const (
	// Import errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Commit errors
	CodeStaleReference ErrorCode = "stale_reference"
	CodeImbalance      ErrorCode = "imbalance"
	CodePartialCommit  ErrorCode = "partial_commit"
	CodeAlreadyClaimed ErrorCode = "already_claimed"

	// Storage errors
	CodeQueryFailed ErrorCode = "query_failed"
	CodeWriteFailed ErrorCode = "write_failed"

	// Pattern errors
	CodePatternLoad ErrorCode = "pattern_load"
	CodePatternSave ErrorCode = "pattern_save"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// EngineError is the base error type for all application errors.
type EngineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate process exit code for the error.
func (e *EngineError) GetExitCode() int {
	switch e.Category {
	case CategoryImport:
		return 2
	case CategoryValidation:
		return 3
	case CategoryConfig:
		return 4
	case CategoryCommit, CategoryStorage, CategoryPattern, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EngineError.
func New(category ErrorCategory, code ErrorCode, message string) *EngineError {
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EngineError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// StaleReference reports a suggestion that references a ledger record which no
// longer exists. Batch drivers recover locally: skip the entry, count it as
// failed, continue the batch.
func StaleReference(kind, id string) *EngineError {
	return New(CategoryCommit, CodeStaleReference,
		fmt.Sprintf("%s %s no longer exists", kind, id)).
		WithSuggestion("recompute suggestions against a fresh snapshot").
		WithContext("target_kind", kind).
		WithContext("target_id", id)
}

// IsStaleReference reports whether err is a stale-reference commit error.
func IsStaleReference(err error) bool {
	ee, ok := AsEngineError(err)
	return ok && ee.Code == CodeStaleReference
}

// Imbalance reports that selected targets do not sum to the bank entry amount
// within tolerance. Raised before any write occurs.
func Imbalance(entryID string, entryAmount, targetSum string) *EngineError {
	return New(CategoryCommit, CodeImbalance,
		fmt.Sprintf("selected targets sum to %s but bank entry %s is %s", targetSum, entryID, entryAmount)).
		WithSuggestion("adjust the selection so the amounts balance").
		WithContext("entry_id", entryID).
		WithContext("entry_amount", entryAmount).
		WithContext("target_sum", targetSum)
}

// PartialCommit wraps a failure that occurred mid-commit after earlier writes
// succeeded. The caller must have already executed compensating deletes before
// surfacing this.
func PartialCommit(entryID string, step string, err error) *EngineError {
	return Wrap(err, CategoryCommit, CodePartialCommit,
		fmt.Sprintf("commit for bank entry %s failed at step %q; compensating rollback applied", entryID, step)).
		WithContext("entry_id", entryID).
		WithContext("failed_step", step)
}

// ImportError creates an import-related error for a file/row.
func ImportError(code ErrorCode, file string, line int, err error) *EngineError {
	var message string
	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column in %s", file)
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s at line %d", file, line)
	default:
		message = fmt.Sprintf("import error in %s at line %d", file, line)
	}

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryImport, code, message)
	} else {
		result = New(CategoryImport, code, message)
	}

	return result.
		WithContext("file", file).
		WithContext("line", line)
}

// ValidationError creates a validation-related error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *EngineError {
	var message string
	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
	}

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *EngineError {
	var message string
	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
	}

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryConfig, code, message)
	} else {
		result = New(CategoryConfig, code, message)
	}

	return result.
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError creates a storage-related error.
func StorageError(code ErrorCode, operation string, err error) *EngineError {
	return Wrap(err, CategoryStorage, code,
		fmt.Sprintf("storage operation %s failed", operation)).
		WithContext("operation", operation)
}

// PatternError creates a pattern-store error.
func PatternError(code ErrorCode, operation string, err error) *EngineError {
	return Wrap(err, CategoryPattern, code,
		fmt.Sprintf("pattern store operation %s failed", operation)).
		WithContext("operation", operation)
}

// InternalError creates an internal error.
func InternalError(operation string, err error) *EngineError {
	var result *EngineError
	message := fmt.Sprintf("unexpected error during %s", operation)
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}
	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary aggregates multiple errors from a batch run.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*EngineError        `json:"errors"`
}

// NewErrorSummary creates a new error summary.
func NewErrorSummary(errs []*EngineError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*EngineError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary.
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode checks if the summary contains errors with the given code.
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	count, exists := es.ByCode[code]
	return exists && count > 0
}

// GetExitCode returns the highest priority exit code from all errors.
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsEngineError extracts an EngineError from an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an EngineError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	if engineErr, ok := AsEngineError(err); ok {
		return engineErr
	}

	return Wrap(err, category, code, message)
}
