// Package errors tests for error code definitions and error handling.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorCodeValues verifies all error codes have non-empty values.
func TestErrorCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
	}{
		{"storage", ErrStorage},
		{"store not ready", ErrStoreNotReady},
		{"migration", ErrMigration},
		{"transport", ErrTransport},
		{"capability", ErrCapability},
		{"sms unavailable", ErrSMSUnavailable},
		{"input", ErrInput},
		{"unknown queue kind", ErrUnknownQueueKind},
		{"invalid severity", ErrInvalidSeverity},
		{"location timeout", ErrLocationTimeout},
		{"location unavailable", ErrLocationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == "" {
				t.Errorf("Error code %s has empty value", tt.name)
			}
		})
	}
}

// TestAppErrorMessage verifies AppError formatting with and without a cause.
func TestAppErrorMessage(t *testing.T) {
	plain := New(ErrStorage, "open database")
	if got := plain.Error(); got != "[STORAGE_ERROR] open database" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(ErrTransport, "POST /health/vitals", stderrors.New("connection refused"))
	if !strings.Contains(wrapped.Error(), "TRANSPORT_ERROR") ||
		!strings.Contains(wrapped.Error(), "connection refused") {
		t.Errorf("Error() = %q, want code and cause", wrapped.Error())
	}
}

// TestUnwrap verifies the cause chain is preserved.
func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrStorage, "put record", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

// TestIsUnwrapsNestedCodes verifies Is walks wrapped AppErrors and
// fmt-wrapped errors alike.
func TestIsUnwrapsNestedCodes(t *testing.T) {
	inner := Wrap(ErrTransport, "status 503", nil)
	outer := fmt.Errorf("deliver item 7: %w", inner)

	if !Is(outer, ErrTransport) {
		t.Error("expected ErrTransport to be found through fmt wrapping")
	}
	if Is(outer, ErrStorage) {
		t.Error("did not expect ErrStorage")
	}
	if Is(nil, ErrTransport) {
		t.Error("nil error should match nothing")
	}
}

// TestClassHelpers verifies the class predicates.
func TestClassHelpers(t *testing.T) {
	if !IsStorage(New(ErrMigration, "schema v2")) {
		t.Error("migration should be storage-class")
	}
	if !IsTransport(Wrap(ErrTransport, "timeout", nil)) {
		t.Error("transport not detected")
	}
	if !IsInput(New(ErrUnknownQueueKind, "kind=bogus")) {
		t.Error("unknown queue kind should be input-class")
	}
	if IsInput(New(ErrTransport, "nope")) {
		t.Error("transport is not input-class")
	}
}
