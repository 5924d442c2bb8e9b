package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the scoring engine's failure taxonomy. All three are
// terminal for the requested operation; the caller owns retry policy.
var (
	// ErrInvalidTrainingData signals an empty or degenerate sample set.
	ErrInvalidTrainingData = errors.New("training data is empty or degenerate")

	// ErrTrainingFailed signals that the underlying fit procedure errored.
	ErrTrainingFailed = errors.New("model training failed")

	// ErrModelNotLoaded signals a score request with no active model.
	// The caller must never receive a fabricated fallback score.
	ErrModelNotLoaded = errors.New("no model loaded")
)

// EngineError represents a standardized error response
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidTrainingData = "INVALID_TRAINING_DATA"
	ErrCodeTrainingFailed      = "TRAINING_FAILED"
	ErrCodeModelNotLoaded      = "MODEL_NOT_LOADED"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeHistoricalSource    = "HISTORICAL_SOURCE_ERROR"
	ErrCodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation          = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// CodeForError maps a sentinel error to its wire-level error code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTrainingData):
		return ErrCodeInvalidTrainingData
	case errors.Is(err, ErrTrainingFailed):
		return ErrCodeTrainingFailed
	case errors.Is(err, ErrModelNotLoaded):
		return ErrCodeModelNotLoaded
	default:
		return ErrCodeInternalServer
	}
}
