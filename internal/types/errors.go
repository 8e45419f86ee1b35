package types

import (
	"errors"
	"fmt"
)

// Root error kinds. Every error returned by the coordinator wraps exactly one
// of them, so callers can branch with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicateSignature = errors.New("duplicate signature")
	ErrExpired            = errors.New("expired")
	ErrInvalidState       = errors.New("invalid state")
	ErrBroadcast          = errors.New("broadcast failed")
	ErrStorage            = errors.New("storage failure")
	ErrSigning            = errors.New("signing failed")
	ErrConflict           = errors.New("concurrent modification")
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeDuplicateSignature = "DUPLICATE_SIGNATURE"
	CodeExpired            = "EXPIRED"
	CodeInvalidState       = "INVALID_STATE"
	CodeBroadcast          = "BROADCAST_FAILED"
	CodeStorage            = "STORAGE_ERROR"
	CodeSigning            = "SIGNING_FAILED"
	CodeConflict           = "CONFLICT"
	CodeUnknown            = "UNKNOWN_ERROR"
)

var kindCodes = map[error]string{
	ErrValidation:         CodeValidation,
	ErrNotFound:           CodeNotFound,
	ErrUnauthorized:       CodeUnauthorized,
	ErrDuplicateSignature: CodeDuplicateSignature,
	ErrExpired:            CodeExpired,
	ErrInvalidState:       CodeInvalidState,
	ErrBroadcast:          CodeBroadcast,
	ErrStorage:            CodeStorage,
	ErrSigning:            CodeSigning,
	ErrConflict:           CodeConflict,
}

// CoordinatorError carries the error kind, a stable code for API clients and
// an optional underlying cause.
type CoordinatorError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *CoordinatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CoordinatorError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, cause error, format string, args ...any) error {
	return &CoordinatorError{
		Code:    kindCodes[kind],
		Message: fmt.Sprintf(format, args...),
		Kind:    kind,
		Err:     cause,
	}
}

func ValidationErrorf(format string, args ...any) error {
	return newError(ErrValidation, nil, format, args...)
}

func NotFoundErrorf(format string, args ...any) error {
	return newError(ErrNotFound, nil, format, args...)
}

func UnauthorizedErrorf(format string, args ...any) error {
	return newError(ErrUnauthorized, nil, format, args...)
}

func DuplicateSignatureErrorf(format string, args ...any) error {
	return newError(ErrDuplicateSignature, nil, format, args...)
}

func ExpiredErrorf(format string, args ...any) error {
	return newError(ErrExpired, nil, format, args...)
}

func InvalidStateErrorf(format string, args ...any) error {
	return newError(ErrInvalidState, nil, format, args...)
}

// BroadcastError marks a failed submission. The proposal stays approved and
// the caller may retry execution.
func BroadcastError(cause error, format string, args ...any) error {
	return newError(ErrBroadcast, cause, format, args...)
}

func StorageError(cause error, format string, args ...any) error {
	return newError(ErrStorage, cause, format, args...)
}

func SigningError(cause error, format string, args ...any) error {
	return newError(ErrSigning, cause, format, args...)
}

func ConflictError(cause error, format string, args ...any) error {
	return newError(ErrConflict, cause, format, args...)
}

// ErrorCode returns the stable code of a coordinator error, or CodeUnknown.
func ErrorCode(err error) string {
	var ce *CoordinatorError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	return CodeUnknown
}
