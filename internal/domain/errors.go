package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrResourceExpired      = errors.New("resource no longer bookable")
	ErrDuplicateReservation = errors.New("duplicate reservation")
	ErrEmptySelection       = errors.New("nothing selected to check out")
	ErrAlreadyCheckedOut    = errors.New("reservation already checked out")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidKind          = errors.New("invalid resource kind")
	ErrOwnerRequired        = errors.New("owner required")
	ErrNoTransaction        = errors.New("capacity decisions require a transaction")
	ErrValidation           = errors.New("validation failed")
)

// ValidationError reports malformed caller input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) ValidationError {
	return ValidationError{Field: field, Message: msg}
}

// MissingFieldsError reports every required field that was left empty.
func MissingFieldsError(fields []string) ValidationError {
	return ValidationError{
		Field:   strings.Join(fields, ","),
		Message: "required",
	}
}

// CapacityError carries the resource that ran out of capacity.
type CapacityError struct {
	Ref       ResourceRef
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded for %s %s: requested %d, remaining %d",
		e.Ref.Kind, e.Ref.ID, e.Requested, e.Remaining)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// IsNotFound reports whether err is any of the lookup failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsCapacity reports whether err is a capacity rejection.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}
