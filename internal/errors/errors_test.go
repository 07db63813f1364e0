package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestQBenchError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeUnknownTable, "unknown table widgets")
	expected := "[VALIDATION:UNKNOWN_TABLE] unknown table widgets"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestQBenchError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "archive failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] archive failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestQBenchError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryDatabase, CodeMigrateFailed, "migrate", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestQBenchError_Is(t *testing.T) {
	err1 := New(ErrCategoryQuery, CodeExecutionFailed, "first")
	err2 := New(ErrCategoryQuery, CodeExecutionFailed, "second")
	err3 := New(ErrCategoryQuery, CodeExecutionTimeout, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryDatabase, CodeBusy, true},
		{ErrCategoryDatabase, CodeMigrateFailed, false},
		{ErrCategoryQuery, CodeExecutionTimeout, true},
		{ErrCategoryQuery, CodeExecutionFailed, false},
		{ErrCategoryValidation, CodeInvalidSchema, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(ErrCategoryIngest, CodeMissingFile, "no file"))
	if GetCategory(err) != ErrCategoryIngest {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryIngest)
	}
	if GetCode(err) != CodeMissingFile {
		t.Errorf("got %q, want %q", GetCode(err), CodeMissingFile)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("plain errors should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("plain errors should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeUnknownColumn, "bad column")
	detailed := err.WithDetails(map[string]interface{}{"column": "a.nope"})

	if detailed.Details["column"] != "a.nope" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown table", NewValidationError(CodeUnknownTable, "x"), http.StatusNotFound},
		{"bad column", NewValidationError(CodeUnknownColumn, "x"), http.StatusBadRequest},
		{"too large", NewIngestError(CodeFileTooLarge, "x", nil), http.StatusRequestEntityTooLarge},
		{"query", NewQueryError(CodeExecutionFailed, "x", nil), http.StatusUnprocessableEntity},
		{"auth", NewAuthError("x"), http.StatusUnauthorized},
		{"busy", NewDatabaseError(CodeBusy, "x", nil), http.StatusServiceUnavailable},
		{"db", NewDatabaseError(CodeConnectFailed, "x", nil), http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	d := NewDatabaseError(CodeConnectFailed, "open", cause)
	if d.Category != ErrCategoryDatabase || d.Retryable {
		t.Error("NewDatabaseError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
