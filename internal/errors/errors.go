package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the PDF extraction worker
 *
 * Every failure of one stage invocation is one of a closed set of kinds.
 * The stage converts each of them into "route the input to failure";
 * the host only adds DELIVERY_FAILED for transport problems.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Stage errors
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorDecodeFailed  ErrorCode = "DECODE_FAILED"
	ErrorConfiguration ErrorCode = "CONFIGURATION"
	ErrorExtraction    ErrorCode = "EXTRACTION_FAILED"
	ErrorEmission      ErrorCode = "EMISSION_FAILED"

	// Transport errors
	ErrorDeliveryFailed ErrorCode = "DELIVERY_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RecordID  string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// WithRecord returns a copy of the error bound to a record ID.
func (e *ProcessingError) WithRecord(recordID string) *ProcessingError {
	cp := *e
	cp.RecordID = recordID
	return &cp
}

// Factory functions

func NewInvalidInputError(contentType string, expected string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidInput,
		Message:   fmt.Sprintf("Unexpected content type %q, expected %q", contentType, expected),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"content_type": contentType,
		},
	}
}

func NewDecodeError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDecodeFailed,
		Message:   "Document could not be decoded",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewConfigurationError(property string, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorConfiguration,
		Message:   fmt.Sprintf("Invalid property %q: %s", property, message),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"property": property,
		},
		Cause: cause,
	}
}

func NewExtractionError(operation string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorExtraction,
		Message:   fmt.Sprintf("Extraction failed for operation %s", operation),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

func NewEmissionError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEmission,
		Message:   "Failed to write output record",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRecordTooLargeError(recordID string, size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidInput,
		Message:   fmt.Sprintf("Record content of %d bytes exceeds limit of %d bytes", size, limit),
		RecordID:  recordID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"size":  size,
			"limit": limit,
		},
	}
}

func NewDeliveryFailedError(recordID string, attempts int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDeliveryFailed,
		Message:   "Failed to deliver invocation outcome",
		RecordID:  recordID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"attempts": attempts,
		},
		Cause: cause,
	}
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// ToMap converts error to map for storage and event payloads
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.RecordID != "" {
		result["record_id"] = e.RecordID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
