package tenantstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestWithContext tests wrapping, unwrapping, and message rendering
func TestWithContext(t *testing.T) {
	err := WithContext(ErrNotFound, map[string]interface{}{"key": "p//order/o-1"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("wrapped error must still match its sentinel")
	}
	if !strings.Contains(err.Error(), "o-1") {
		t.Errorf("context must appear in the message: %s", err.Error())
	}
	if WithContext(nil, nil) != nil {
		t.Errorf("wrapping nil must yield nil")
	}
	bare := WithContext(ErrNotFound, nil)
	if bare.Error() != ErrNotFound.Error() {
		t.Errorf("empty context must not decorate the message: %s", bare.Error())
	}
}

// TestErrorHelpers tests the sentinel classification helpers
func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", WithContext(ErrAlreadyExists, nil))
	if !IsAlreadyExists(wrapped) {
		t.Errorf("IsAlreadyExists must see through wrapping")
	}
	if !IsInvalidArgument(ErrInvalidKind) || !IsInvalidArgument(ErrInvalidConfig) || !IsInvalidArgument(ErrInvalidArgument) {
		t.Errorf("all precondition sentinels classify as invalid argument")
	}
	if IsInvalidArgument(ErrNotFound) {
		t.Errorf("not-found is not a precondition violation")
	}
	if !IsIllegalState(ErrIllegalState) || IsIllegalState(ErrNotFound) {
		t.Errorf("illegal-state classification wrong")
	}
	if !IsRetryable(ErrProviderUnavailable) || IsRetryable(ErrAlreadyExists) {
		t.Errorf("only provider unavailability is retryable")
	}
}
