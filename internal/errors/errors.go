// Package errors provides structured error types for qbench.
// Every error carries a category, a code and a retryable flag so that the
// HTTP and gRPC layers can map failures without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryIngest     ErrorCategory = "INGEST"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryDatabase   ErrorCategory = "DATABASE"
	ErrCategoryAuth       ErrorCategory = "AUTH"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidSchema  = "INVALID_SCHEMA"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknownTable   = "UNKNOWN_TABLE"
	CodeUnknownColumn  = "UNKNOWN_COLUMN"

	// Ingest codes
	CodeStagingFailed = "STAGING_FAILED"
	CodeFileTooLarge  = "FILE_TOO_LARGE"
	CodeMissingFile   = "MISSING_FILE"

	// Query codes
	CodeExecutionFailed  = "EXECUTION_FAILED"
	CodeExecutionTimeout = "EXECUTION_TIMEOUT"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Database codes
	CodeConnectFailed = "CONNECT_FAILED"
	CodeMigrateFailed = "MIGRATE_FAILED"
	CodeBusy          = "BUSY"

	// Auth codes
	CodeUnauthorized = "UNAUTHORIZED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// QBenchError is the structured error type used throughout the service.
type QBenchError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *QBenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *QBenchError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *QBenchError) Is(target error) bool {
	var t *QBenchError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new QBenchError.
func New(category ErrorCategory, code, message string) *QBenchError {
	return &QBenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new QBenchError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *QBenchError {
	return &QBenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *QBenchError) WithDetails(details map[string]interface{}) *QBenchError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var qe *QBenchError
	if errors.As(err, &qe) {
		return qe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a QBenchError.
func GetCategory(err error) ErrorCategory {
	var qe *QBenchError
	if errors.As(err, &qe) {
		return qe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a QBenchError.
func GetCode(err error) string {
	var qe *QBenchError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// HTTPStatus maps an error chain to the status code the API responds with.
func HTTPStatus(err error) int {
	switch GetCategory(err) {
	case ErrCategoryValidation:
		if GetCode(err) == CodeUnknownTable {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case ErrCategoryIngest:
		if GetCode(err) == CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case ErrCategoryQuery:
		return http.StatusUnprocessableEntity
	case ErrCategoryAuth:
		return http.StatusUnauthorized
	case ErrCategoryStorage, ErrCategoryDatabase:
		if IsRetryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryDatabase && code == CodeBusy:
		return true
	case category == ErrCategoryQuery && code == CodeExecutionTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *QBenchError {
	return New(ErrCategoryValidation, code, message)
}

func NewIngestError(code, message string, cause error) *QBenchError {
	return Wrap(ErrCategoryIngest, code, message, cause)
}

func NewQueryError(code, message string, cause error) *QBenchError {
	return Wrap(ErrCategoryQuery, code, message, cause)
}

func NewStorageError(code, message string, cause error) *QBenchError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewDatabaseError(code, message string, cause error) *QBenchError {
	return Wrap(ErrCategoryDatabase, code, message, cause)
}

func NewAuthError(message string) *QBenchError {
	return New(ErrCategoryAuth, CodeUnauthorized, message)
}

func NewInternalError(message string, cause error) *QBenchError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
