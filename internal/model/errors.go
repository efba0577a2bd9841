package model

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine reports.
type Kind string

const (
	KindNotInitialized  Kind = "NotInitialized"
	KindUnavailable     Kind = "Unavailable"
	KindPartialFailure  Kind = "PartialFailure"
	KindScanTruncated   Kind = "ScanTruncated"
	KindInvalidArgument Kind = "InvalidArgument"
)

var (
	ErrNotInitialized  = errors.New("session not initialized")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is a typed failure of one operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotInitialized builds the precondition failure for op.
func NotInitialized(op string) error {
	return &Error{Kind: KindNotInitialized, Op: op, Err: ErrNotInitialized}
}

// InvalidArgument rejects an input that has no safe default.
func InvalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))}
}

// PartialFailure reports a subsystem read that failed outright.
func PartialFailure(op string, err error) error {
	return &Error{Kind: KindPartialFailure, Op: op, Err: err}
}

// KindOf extracts the Kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Field names one subsystem of a Snapshot.
type Field string

const (
	FieldHost        Field = "host"
	FieldCPU         Field = "cpu"
	FieldMemory      Field = "memory"
	FieldDisk        Field = "disk"
	FieldNetwork     Field = "network"
	FieldBattery     Field = "battery"
	FieldTemperature Field = "temperature"
	FieldProcesses   Field = "processes"
	FieldUsers       Field = "users"
	FieldCPUFreq     Field = "cpu_frequency"
)

// FieldError annotates a snapshot field that failed with a PartialFailure.
type FieldError struct {
	Field   Field  `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Annotate records err as a PartialFailure of field f.
func Annotate(f Field, err error) FieldError {
	return FieldError{Field: f, Kind: KindPartialFailure, Message: err.Error()}
}
