package domain

import (
	"errors"
	"fmt"
	"time"
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrValidation      = "VALIDATION_ERROR"
	ErrUploadParse     = "UPLOAD_PARSE_ERROR"
	ErrPayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrNoDataset       = "NO_DATASET"
	ErrRowNotFound     = "ROW_NOT_FOUND"
	ErrLedger          = "LEDGER_ERROR"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
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

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
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

// ErrorCode extracts the service error code carried by err. Validation errors
// map to ErrValidation and anything else to ErrInternalServer.
func ErrorCode(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrValidation
	}
	return ErrInternalServer
}
