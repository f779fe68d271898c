package errors

import (
	"errors"
	"net/http"
)

// ErrorCode is the machine readable "error" field of a failed response.
type ErrorCode string

const (
	ValidationError     ErrorCode = "validation_error"
	Unauthenticated     ErrorCode = "unauthenticated"
	BearerTokenMissing  ErrorCode = "bearer_token_missing"
	InvalidBearerToken  ErrorCode = "invalid_bearer_token"
	Forbidden           ErrorCode = "forbidden"
	LicenseRequired     ErrorCode = "license_required"
	NotFound            ErrorCode = "not_found"
	UndefinedEndpoint   ErrorCode = "undefined_endpoint"
	MethodNotAllowed    ErrorCode = "method_not_allowed"
	Conflict            ErrorCode = "conflict"
	PayloadTooLarge     ErrorCode = "payload_too_large"
	Cancelled           ErrorCode = "cancelled"
	DeadlineExceeded    ErrorCode = "deadline_exceeded"
	InternalServerError ErrorCode = "internal_error"
)

var httpStatusCodes = map[ErrorCode]int{
	ValidationError:     http.StatusBadRequest,
	Unauthenticated:     http.StatusUnauthorized,
	BearerTokenMissing:  http.StatusUnauthorized,
	InvalidBearerToken:  http.StatusUnauthorized,
	Forbidden:           http.StatusForbidden,
	LicenseRequired:     http.StatusForbidden,
	NotFound:            http.StatusNotFound,
	UndefinedEndpoint:   http.StatusNotFound,
	MethodNotAllowed:    http.StatusMethodNotAllowed,
	Conflict:            http.StatusConflict,
	PayloadTooLarge:     http.StatusRequestEntityTooLarge,
	Cancelled:           499,
	DeadlineExceeded:    http.StatusGatewayTimeout,
	InternalServerError: http.StatusInternalServerError,
}

// HTTPStatus returns the status code responses with this code are sent with.
// Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := httpStatusCodes[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// EncodedError is an error that is safe to return to the caller verbatim.
type EncodedError struct {
	HTTPStatusCode int
	code           ErrorCode
	message        string
}

var _ error = (*EncodedError)(nil)

// NewEncodedError returns an error with the given code and message and the
// status code that goes with it.
func NewEncodedError(code ErrorCode, message string) *EncodedError {
	return &EncodedError{
		HTTPStatusCode: code.HTTPStatus(),
		code:           code,
		message:        message,
	}
}

func (e *EncodedError) Error() string {
	return e.message
}

func (e *EncodedError) Code() ErrorCode {
	return e.code
}

func (e *EncodedError) Message() string {
	return e.message
}

// Is matches another EncodedError with the same code and message.
func (e *EncodedError) Is(target error) bool {
	var other *EncodedError
	if !errors.As(target, &other) {
		return false
	}
	return e.code == other.code && e.message == other.message
}

// Encode converts any error into the form written to the client. Errors that
// are not encoded already are reported as internal errors without their cause.
func Encode(err error) *EncodedError {
	var encoded *EncodedError
	if errors.As(err, &encoded) {
		return encoded
	}

	var internal InternalError
	if errors.As(err, &internal) {
		return NewEncodedError(InternalServerError, internal.public)
	}

	return NewEncodedError(InternalServerError, InternalServerErrorMsg)
}
