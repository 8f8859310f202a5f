package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is reported by a store when the object does not exist
	ErrNotFound = errors.New("object not found")
	// ErrCapabilityExpired is reported when a capability is redeemed at or after its expiry
	ErrCapabilityExpired = errors.New("capability expired")
	// ErrCapabilityInvalid is reported when a capability does not authorize the request
	ErrCapabilityInvalid = errors.New("capability does not authorize this request")
)

// ValidationError is a missing or malformed caller-supplied parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StoreError wraps any failure from the underlying object store
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Message is the store's own message, suitable for showing to an end user
func (e *StoreError) Message() string {
	if e.Err == nil {
		return "store error"
	}
	return e.Err.Error()
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
