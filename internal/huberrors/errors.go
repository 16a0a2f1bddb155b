// Package huberrors holds the error kinds that handlers map to HTTP statuses.
package huberrors

import "github.com/google/uuid"

// ErrNotFound matches any *NotFoundError via errors.Is.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing business or embedding record.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

// NotFound returns a NotFoundError for the resource with the given id.
func NotFound(resource string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "resource"
	}

	if e.ID == uuid.Nil {
		return resource + " not found"
	}

	return resource + " " + e.ID.String() + " not found"
}

// Is matches any *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = &ValidationError{}

// ValidationError reports unusable input for Field. Cause stays reachable through errors.Is/As.
type ValidationError struct {
	Field string
	Cause error
}

// WrapValidation attributes cause to field.
func WrapValidation(field string, cause error) *ValidationError {
	return &ValidationError{Field: field, Cause: cause}
}

func (e *ValidationError) Error() string {
	switch {
	case e.Cause != nil:
		return e.Cause.Error()
	case e.Field != "":
		return "invalid " + e.Field
	default:
		return "validation error"
	}
}

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

func (e *ValidationError) Unwrap() error { return e.Cause }
