package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewRemoteStore_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:443: connection refused")
	err := NewRemoteStore(cause)

	if err.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.Code)
	}
	if err.Message != "error" {
		t.Errorf("expected message %q, got %q", "error", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestSafeMessageAndCode(t *testing.T) {
	wrapped := fmt.Errorf("listing: %w", NewBadRequest("limit must be a positive integer"))
	if got := SafeMessage(wrapped); got != "limit must be a positive integer" {
		t.Errorf("expected wrapped AppError message, got %q", got)
	}
	if got := SafeCode(wrapped); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}

	plain := errors.New("secret table name")
	if got := SafeMessage(plain); got != "Internal Server Error" {
		t.Errorf("expected the generic status text, got %q", got)
	}
	if got := SafeCode(plain); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
}
