package event

import (
	"errors"
	"fmt"
)

// Error is a lifecycle or persistence failure tied to a record.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description, suitable for showing to an
	// administrator whose request was rejected.
	Message string

	// EventID identifies the affected record, or 0 if unknown.
	EventID int64

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeInvalidState indicates a transition on an ineligible record.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeAlreadyStarted indicates a start on a record that is already
	// started. It is a refinement of ErrCodeInvalidState.
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"

	// ErrCodeNotFound indicates a missing record or announcement.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeCollaboratorFailure indicates an external call failed.
	ErrCodeCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE"

	// ErrCodePersistenceFailure indicates a write did not affect exactly one row.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventID != 0 {
		msg = fmt.Sprintf("%s (event=%d)", msg, e.EventID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, codes ...ErrorCode) bool {
	var ee *Error
	if !errors.As(err, &ee) {
		return false
	}
	for _, c := range codes {
		if ee.Code == c {
			return true
		}
	}
	return false
}

// IsInvalidState returns true for InvalidState and AlreadyStarted errors.
func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState, ErrCodeAlreadyStarted)
}

// IsAlreadyStarted returns true if the record was already started.
func IsAlreadyStarted(err error) bool {
	return hasCode(err, ErrCodeAlreadyStarted)
}

// IsNotFound returns true if a record or announcement was missing.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsCollaboratorFailure returns true if an external call failed.
func IsCollaboratorFailure(err error) bool {
	return hasCode(err, ErrCodeCollaboratorFailure)
}

// IsPersistenceFailure returns true if a store write affected an unexpected
// number of rows.
func IsPersistenceFailure(err error) bool {
	return hasCode(err, ErrCodePersistenceFailure)
}

// NewInvalidState creates an InvalidState error with a rejection reason.
func NewInvalidState(id int64, reason string) *Error {
	return &Error{Code: ErrCodeInvalidState, Message: reason, EventID: id}
}

// NewAlreadyStarted creates an AlreadyStarted error.
func NewAlreadyStarted(id int64) *Error {
	return &Error{Code: ErrCodeAlreadyStarted, Message: "event was already started", EventID: id}
}

// NewNotFound creates a NotFound error for a record or announcement.
func NewNotFound(id int64, what string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: what + " not found", EventID: id}
}

// NewCollaboratorFailure wraps a failed external call.
func NewCollaboratorFailure(id int64, op string, err error) *Error {
	return &Error{Code: ErrCodeCollaboratorFailure, Message: op, EventID: id, Err: err}
}

// NewPersistenceFailure reports a write that affected the wrong number of rows.
func NewPersistenceFailure(id int64, op string, rows int64) *Error {
	return &Error{
		Code:    ErrCodePersistenceFailure,
		Message: fmt.Sprintf("%s affected %d rows, expected 1", op, rows),
		EventID: id,
	}
}
