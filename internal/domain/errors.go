package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no book (active or trashed) matches the id.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidState is returned when the lifecycle precondition of an operation is not met.
	ErrInvalidState = errors.New("invalid state")
	// ErrRestoreFailed means the restore write went through but the book still reads as deleted.
	ErrRestoreFailed = errors.New("restore verification failed")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	// ErrSweepInProgress is returned when another retention sweep holds the run lock.
	ErrSweepInProgress = errors.New("retention sweep already in progress")
)

// StoreError wraps a persistence failure.
type StoreError struct {
	Operation string
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [operation=%s]: %v", e.Operation, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError wraps cause unless it is nil or already a domain sentinel.
func NewStoreError(operation string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrNotFound) || errors.Is(cause, ErrConflict) {
		return cause
	}
	return &StoreError{Operation: operation, Cause: cause}
}

// SweepError is returned when a retention sweep cannot run at all.
type SweepError struct {
	RetentionDays int
	Cause         error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep error [retention_days=%d]: %v", e.RetentionDays, e.Cause)
}

func (e *SweepError) Unwrap() error {
	return e.Cause
}
