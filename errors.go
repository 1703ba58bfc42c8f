package tenantstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Data errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrIteratorDone  = errors.New("iterator exhausted")

	// Precondition errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidConfig   = errors.New("invalid configuration")

	// Transaction state errors
	ErrIllegalState = errors.New("illegal transaction state")

	// Provider errors
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an existence conflict. Higher layers
// using optimistic-claim patterns interpret this as "someone else won".
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidArgument checks if an error is a precondition violation at the
// call site. These are never worth retrying.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsIllegalState checks if an error came from a transaction lifecycle
// violation. These indicate a caller bug, not a transient condition.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrIllegalState)
}

// IsRetryable checks if an error is safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
