package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ValidationKind classifies a rejected request field
type ValidationKind string

const (
	MissingField ValidationKind = "missing_field"
	InvalidType  ValidationKind = "invalid_type"
	InvalidValue ValidationKind = "invalid_value"
)

// ValidationError rejects a request before any state is built. Never retried.
type ValidationError struct {
	Kind   ValidationKind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("Missing required parameter: %s", e.Field)
	case InvalidType:
		return fmt.Sprintf("Invalid type for parameter %s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("Invalid value for parameter %s: %s", e.Field, e.Reason)
	}
}

// EngineError aborts a run at a step; the partial timeline is kept
type EngineError struct {
	Step  int
	Date  time.Time
	Cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("backtest step %d (%s) failed: %v", e.Step, e.Date.Format(DateLayout), e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// SerializationError reports a value that cannot be put on the wire
type SerializationError struct {
	Field string
	Value float64
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize non-finite value %v at %s", e.Value, e.Field)
}

var (
	// ErrRunNotFound is returned for unknown run ids
	ErrRunNotFound = errors.New("backtest run not found")

	// ErrRunFinalized is returned when a terminal run would be changed
	ErrRunFinalized = errors.New("backtest run already finalized")

	// ErrQueueFull is returned when the worker queue cannot take another run
	ErrQueueFull = errors.New("backtest queue is full")

	// ErrShuttingDown is returned for submissions after shutdown began
	ErrShuttingDown = errors.New("backtest manager is shutting down")
)

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
