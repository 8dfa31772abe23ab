package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"invalid input", NewInvalidInputError("text/plain", "application/pdf"), ErrorInvalidInput},
		{"decode", NewDecodeError(cause), ErrorDecodeFailed},
		{"configuration", NewConfigurationError("Start Page", "must be positive", nil), ErrorConfiguration},
		{"extraction", NewExtractionError("PlainText", cause), ErrorExtraction},
		{"emission", NewEmissionError(cause), ErrorEmission},
		{"too large", NewRecordTooLargeError("r", 10, 5), ErrorInvalidInput},
		{"delivery", NewDeliveryFailedError("r", 3, cause), ErrorDeliveryFailed},
		{"wrapped", fmt.Errorf("outer: %w", NewDecodeError(cause)), ErrorDecodeFailed},
		{"plain", cause, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewExtractionError("RegionText", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestWithRecordCopies(t *testing.T) {
	base := NewDecodeError(nil)
	bound := base.WithRecord("rec-1")

	if bound.RecordID != "rec-1" {
		t.Errorf("RecordID = %q", bound.RecordID)
	}
	if base.RecordID != "" {
		t.Error("WithRecord modified the original")
	}
}

func TestToMap(t *testing.T) {
	m := NewDeliveryFailedError("rec-1", 3, errors.New("redis down")).ToMap()

	if m["error_code"] != "DELIVERY_FAILED" || m["record_id"] != "rec-1" {
		t.Errorf("unexpected map %v", m)
	}
	if m["attempts"] != 3 || m["cause"] != "redis down" {
		t.Errorf("details or cause missing: %v", m)
	}
}
