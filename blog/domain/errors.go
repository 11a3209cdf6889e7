package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPostNotFound is returned when an id does not resolve to a post.
	ErrPostNotFound = errors.New("post not found")

	// ErrNoPosts is returned when listing finds nothing. Existing clients expect 404 here.
	ErrNoPosts = errors.New("no posts found")

	// ErrVersionConflict is returned when an update carries a stale version.
	ErrVersionConflict = errors.New("post was modified by another request")
)

// ValidationError reports bad or missing input. It is always raised before any side effect.
type ValidationError struct {
	Reason string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (%s)", e.Reason, strings.Join(e.Fields, ", "))
}

// NewValidationError builds a ValidationError without field details.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NewMissingFieldsError lists the required fields that were absent or blank.
func NewMissingFieldsError(fields []string) *ValidationError {
	return &ValidationError{
		Reason: "missing required fields",
		Fields: fields,
	}
}

// MalformedPayloadError reports a field whose JSON could not be parsed.
type MalformedPayloadError struct {
	Field string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("invalid %s format: %v", e.Field, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// UpstreamError wraps a failure of the media store or the document store.
type UpstreamError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
