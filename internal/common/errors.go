package common

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidPrice         = errors.New("price must be non-negative")
	ErrInvalidSide          = errors.New("unrecognised side")
	ErrInvalidSymbol        = errors.New("symbol must not be empty")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// ValidationError rejects a submission before it reaches a book.
type ValidationError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches both ErrValidation and the specific cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.cause != nil && target == e.cause)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func newValidationError(field string, cause error) *ValidationError {
	return &ValidationError{Field: field, Reason: cause.Error(), cause: cause}
}

// InsufficientQuantityError is raised when a fill would take an order below
// zero. It only happens if the matching pass is broken.
type InsufficientQuantityError struct {
	OrderID   OrderID
	Remaining uint64
	Requested uint64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf(
		"order %d: cannot reduce %d by %d: %s",
		e.OrderID, e.Remaining, e.Requested, ErrInsufficientQuantity,
	)
}

func (e *InsufficientQuantityError) Unwrap() error {
	return ErrInsufficientQuantity
}
