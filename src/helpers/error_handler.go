package helpers

import (
	"fmt"
	"time"

	"pulseops/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type PulseOpsError struct {
	Message string
	Cause   error
}

func (e *PulseOpsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PulseOpsError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks at the HTTP boundary.
type ConfigurationError struct{ PulseOpsError }
type NetworkError struct{ PulseOpsError }
type AuthError struct{ PulseOpsError }
type DatabaseError struct{ PulseOpsError }
type ValidationError struct{ PulseOpsError }

// -----------------------------------------------------------------------------

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{PulseOpsError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------

// NewAuthError wraps a cause as an authentication failure.
func NewAuthError(message string, cause error) *AuthError {
	return &AuthError{PulseOpsError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

// NewConfigurationError wraps a cause as a configuration failure.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{PulseOpsError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

// NewNetworkError wraps a cause as an upstream connectivity failure.
func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{PulseOpsError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

// NewDatabaseError wraps a cause as a storage failure.
func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{PulseOpsError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}
		time.Sleep(delay)
	}

	return nil, lastErr
}
