package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/scribeworks/backend/internal/store"
)

// ErrorKind classifies engine failures for callers and the HTTP layer.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindConflict          ErrorKind = "CONFLICT"
	KindPolicy            ErrorKind = "POLICY"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindAdapter           ErrorKind = "ADAPTER"
	KindInternal          ErrorKind = "INTERNAL"
)

// Error is a classified engine error. errors.Is matches on Kind, so
// errors.Is(err, ErrConflict) holds for every conflict.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrPolicy            = &Error{Kind: KindPolicy, Message: "not permitted"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrAdapter           = &Error{Kind: KindAdapter, Message: "scoring unavailable"}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func conflictError(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func policyError(format string, args ...any) error {
	return newError(KindPolicy, format, args...)
}

func insufficientFunds(format string, args ...any) error {
	return newError(KindInsufficientFunds, format, args...)
}

func adapterError(err error) error {
	return &Error{Kind: KindAdapter, Message: "scoring failed, retry the submission", Err: err}
}

// notFoundOr converts store.ErrNotFound into a NotFound error naming what was
// missing and passes other errors through.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: err}
	}
	return err
}

// fromValidator turns validator output into a Validation error with per-field
// details.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid request", Err: err}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Details: details}
}

// KindOf returns the classification of err, or KindInternal. A unit of work
// aborted by the database for contention is a Conflict.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, store.ErrContention) {
		return KindConflict
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed when repeated.
func Retryable(err error) bool {
	return KindOf(err) == KindAdapter
}

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPolicy:
		return http.StatusForbidden
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindAdapter:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
