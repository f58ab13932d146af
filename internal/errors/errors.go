// Package errors defines the application error taxonomy shared by the
// engine, services and transports.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/piwi3910/FabriCut/internal/model"
)

// ErrorCode classifies an application error.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRiskBlocked  ErrorCode = "RISK_BLOCKED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error is the error type returned across package boundaries.
type Error struct {
	Code    ErrorCode          `json:"code"`
	Message string             `json:"message"`
	Field   string             `json:"field,omitempty"`
	Fields  map[string]string  `json:"fields,omitempty"`
	Verdict *model.RiskVerdict `json:"verdict,omitempty"`
	Err     error              `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// InvalidInput reports a missing or malformed request field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Message: message, Field: field}
}

// InvalidFields reports several invalid fields at once, keyed by field name.
func InvalidFields(fields map[string]string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Message: "validation failed", Fields: fields}
}

// NotFound reports an entity that does not exist in the caller's workspace.
func NotFound(entity, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// Conflict reports a state that does not allow the requested change.
func Conflict(format string, args ...interface{}) *Error {
	return Newf(ErrCodeConflict, format, args...)
}

// RiskBlocked carries a RED verdict back to the caller.
func RiskBlocked(v model.RiskVerdict) *Error {
	return &Error{
		Code:    ErrCodeRiskBlocked,
		Message: fmt.Sprintf("operation blocked by risk assessment (%s)", v.Context),
		Verdict: &v,
	}
}

// CodeOf returns the code of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As is a thin wrapper so callers do not need to import both packages.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRiskBlocked:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps an error code to a gRPC status code.
func GRPCCode(code ErrorCode) codes.Code {
	switch code {
	case ErrCodeInvalidInput:
		return codes.InvalidArgument
	case ErrCodeNotFound:
		return codes.NotFound
	case ErrCodeConflict:
		return codes.Aborted
	case ErrCodeRiskBlocked:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// Public returns a copy of err safe to hand to a caller. Internal errors lose
// their message and cause.
func Public(err error) *Error {
	e, ok := As(err)
	if !ok || e.Code == ErrCodeInternal {
		return &Error{Code: ErrCodeInternal, Message: "internal error"}
	}
	cp := *e
	cp.Err = nil
	return &cp
}
