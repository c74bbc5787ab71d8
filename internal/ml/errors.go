package ml

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers match with
// errors.Is; the structured variants below carry the offending
// field/value and unwrap to these sentinels.
var (
	// ErrNotFitted indicates a transform was requested before fit.
	ErrNotFitted = errors.New("component not fitted")

	// ErrNotTrained indicates a prediction or introspection was
	// requested before the model was trained.
	ErrNotTrained = errors.New("model not trained")

	// ErrUnknownCategory indicates an inference-time categorical value
	// that was absent from the training data.
	ErrUnknownCategory = errors.New("unknown category value")

	// ErrInsufficientData indicates training was called with too few
	// records.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrInvalidRecord indicates a record is missing a required field.
	ErrInvalidRecord = errors.New("invalid character record")

	// ErrInvalidArgument indicates a bad parameter to an introspection
	// or prediction call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorruptState indicates a persistence blob is invalid or was
	// written by an incompatible version.
	ErrCorruptState = errors.New("corrupt model state")
)

// UnknownCategoryError reports which categorical field carried a value
// never seen during training.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s value %q", e.Field, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// InvalidRecordError reports which record and field failed validation.
type InvalidRecordError struct {
	Index int
	Field string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("record %d missing required field %q", e.Index, e.Field)
}

func (e *InvalidRecordError) Unwrap() error { return ErrInvalidRecord }

// InsufficientDataError reports how many records were supplied and the
// minimum required.
type InsufficientDataError struct {
	Count int
	Min   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("training requires at least %d records, got %d", e.Min, e.Count)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
