package tasks

import (
	"errors"
	"net/http"
)

// Kind classifies a failed task operation.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFoundOrForbidden
	KindStorage
	KindInvalidAction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFoundOrForbidden:
		return "not_found_or_forbidden"
	case KindStorage:
		return "storage_error"
	case KindInvalidAction:
		return "invalid_action"
	default:
		return "unknown"
	}
}

// Error is returned by every Service mutation. Message is safe to show to
// the caller; Err holds the underlying cause, if any, for server logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

const (
	msgTaskEmpty      = "Task cannot be empty"
	msgTaskIDRequired = "Valid Task ID is required"
	msgDeleteNotFound = "Task not found or you do not have permission to delete it"
	msgUpdateNotFound = "Task not found or you do not have permission to update it"
	msgAddFailed      = "Failed to add task to database"
	msgDeleteFailed   = "Failed to delete task"
	msgUpdateFailed   = "Failed to update task"
	msgInvalidAction  = "Invalid action"
)

// ErrNoRows is returned by repositories when a scoped mutation matched nothing.
var ErrNoRows = errors.New("no rows affected")

func validationErr(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func storageErr(msg string, cause error) error {
	return &Error{Kind: KindStorage, Message: msg, Err: cause}
}

func notFoundErr(msg string) error { return &Error{Kind: KindNotFoundOrForbidden, Message: msg} }

// KindOf reports the Kind of err, or KindStorage for errors that did not
// originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// PublicMessage returns the caller-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Unexpected error"
}

func statusFor(k Kind) int {
	switch k {
	case KindValidation, KindInvalidAction:
		return http.StatusBadRequest
	case KindNotFoundOrForbidden:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
