package graph

import (
	"errors"
	"log/slog"

	"eventGraph/internal/lib/logger/sl"
	"eventGraph/internal/storage"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeInternal        Code = "INTERNAL"
)

// Error is returned by resolvers. The engine copies Extensions into the
// response so clients can branch on the code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.Code)}
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var errUnauthenticated = newError(CodeUnauthenticated, "unauthenticated")

// storeError maps storage failures onto API errors. Anything unexpected is
// logged and reported without internals.
func storeError(log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, storage.ErrUserExists):
		return newError(CodeConflict, "user exists already")
	case errors.Is(err, storage.ErrUserNotFound):
		return newError(CodeNotFound, "user not found")
	case errors.Is(err, storage.ErrEventNotFound):
		return newError(CodeNotFound, "event not found")
	case errors.Is(err, storage.ErrBookingNotFound):
		return newError(CodeNotFound, "booking not found")
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	log.Error("storage failure", sl.Err(err))

	return newError(CodeInternal, "internal error")
}
