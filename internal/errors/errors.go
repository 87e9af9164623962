package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for convdex.
// It carries enough context to attribute a failure to a dataset and a
// pipeline stage, for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_411_UNKNOWN_DATASET").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Dataset, Build).
	Category Category

	// Dataset is the dataset name the error is attributable to, if any.
	Dataset string

	// Stage is the pipeline stage where the error occurred, if any.
	Stage Stage

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("[%s] dataset %q: %s", e.Code, e.Dataset, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDataset attributes the error to a dataset name.
// Returns the error for method chaining.
func (e *Error) WithDataset(name string) *Error {
	e.Dataset = name
	return e
}

// WithStage records the pipeline stage the error occurred in.
func (e *Error) WithStage(stage Stage) *Error {
	e.Stage = stage
	return e
}

// New creates a new Error with the given code and message.
// The category is derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// hasCode reports whether err or any error in its chain carries code.
func hasCode(err error, code string) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsUnknownDataset reports whether err is an unknown-dataset error.
func IsUnknownDataset(err error) bool { return hasCode(err, ErrCodeUnknownDataset) }

// IsDuplicateDataset reports whether err is a duplicate-registration error.
func IsDuplicateDataset(err error) bool { return hasCode(err, ErrCodeDuplicateDataset) }

// IsSchemaMismatch reports whether err is a schema validation error.
func IsSchemaMismatch(err error) bool { return hasCode(err, ErrCodeSchemaMismatch) }

// IsDuplicateDocID reports whether err is a duplicate document id error.
func IsDuplicateDocID(err error) bool { return hasCode(err, ErrCodeDuplicateDocID) }

// IsMissingPath reports whether err is a missing storage path error.
func IsMissingPath(err error) bool { return hasCode(err, ErrCodeMissingPath) }

// IsInvalidState reports whether err is an invalid lifecycle transition.
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }

// IsBuildTimeout reports whether err is a build deadline expiry.
func IsBuildTimeout(err error) bool { return hasCode(err, ErrCodeBuildTimeout) }

// IsBuilderInvocation reports whether err wraps an external builder failure.
func IsBuilderInvocation(err error) bool { return hasCode(err, ErrCodeBuilderInvocation) }

// IsBuildCancelled reports whether err is a caller-requested cancellation.
func IsBuildCancelled(err error) bool { return hasCode(err, ErrCodeBuildCancelled) }

// UnknownDataset creates an unknown-dataset error for name.
func UnknownDataset(name string) *Error {
	return New(ErrCodeUnknownDataset, "not registered", nil).WithDataset(name).WithStage(StageRegistry)
}

// DuplicateDataset creates a duplicate-registration error for name.
func DuplicateDataset(name string) *Error {
	return New(ErrCodeDuplicateDataset, "already registered", nil).WithDataset(name).WithStage(StageRegistry)
}

// SchemaMismatch creates a schema validation error.
func SchemaMismatch(dataset, message string) *Error {
	return New(ErrCodeSchemaMismatch, message, nil).WithDataset(dataset).WithStage(StageValidation)
}

// DuplicateDocID creates a duplicate document id error.
func DuplicateDocID(dataset, docID string) *Error {
	return New(ErrCodeDuplicateDocID, fmt.Sprintf("duplicate doc id %q", docID), nil).
		WithDataset(dataset).WithStage(StageValidation)
}

// MissingPath creates a missing storage path error.
func MissingPath(path string, cause error) *Error {
	return New(ErrCodeMissingPath, fmt.Sprintf("path does not exist: %s", path), cause)
}

// InvalidState creates an invalid lifecycle transition error.
func InvalidState(dataset, message string) *Error {
	return New(ErrCodeInvalidState, message, nil).WithDataset(dataset)
}

// BuildTimeout creates a build deadline expiry error.
func BuildTimeout(dataset string, cause error) *Error {
	return New(ErrCodeBuildTimeout, "build deadline exceeded", cause).
		WithDataset(dataset).WithStage(StageBuilder)
}

// BuilderInvocation wraps an external index builder failure.
func BuilderInvocation(dataset string, cause error) *Error {
	return New(ErrCodeBuilderInvocation, "index builder failed", cause).
		WithDataset(dataset).WithStage(StageBuilder)
}

// BuildCancelled creates a caller-requested cancellation error.
func BuildCancelled(dataset string) *Error {
	return New(ErrCodeBuildCancelled, "build cancelled", nil).
		WithDataset(dataset).WithStage(StageBuilder)
}
