package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUpstreamStorage = errors.New("attachment storage failure")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input reaching the core is malformed.
type ValidationError struct {
	Fields []FieldError
}

// Add appends a field message.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError builds a single-field validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// StorageError wraps a failed attachment upload
type StorageError struct {
	Filename string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("upload %q: %v", e.Filename, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrUpstreamStorage, e.Err}
}

// IsNotFound reports whether err belongs to the NotFound class
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsValidation reports whether err belongs to the ValidationFailure class
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
