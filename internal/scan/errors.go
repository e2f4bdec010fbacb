package scan

import "fmt"

// ValidationError marks a raw feature bundle that cannot be turned into a
// FeatureRecord. The instrument is skipped for the cycle; the batch continues.
type ValidationError struct {
	Instrument string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid features for %s: %s %s", e.Instrument, e.Field, e.Reason)
}

func newValidationError(instrument, field, reason string) *ValidationError {
	return &ValidationError{Instrument: instrument, Field: field, Reason: reason}
}
