package orders

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindInvalidState    ErrorKind = "INVALID_STATE"
	KindValidation      ErrorKind = "VALIDATION_ERROR"
	KindConflict        ErrorKind = "CONFLICT"
	KindExternalService ErrorKind = "EXTERNAL_SERVICE_ERROR"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrOpenTabExists  = errors.New("table already has an open tab")
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func InvalidStateError(format string, args ...any) *Error {
	return newError(KindInvalidState, nil, format, args...)
}

func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func ConflictError(format string, args ...any) *Error {
	return newError(KindConflict, nil, format, args...)
}

func ExternalServiceError(err error, format string, args ...any) *Error {
	return newError(KindExternalService, err, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
