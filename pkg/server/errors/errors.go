// Package errors contains the errors the API returns and the translation of
// datastore, authentication and licensing failures into them.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/blob"
	"github.com/genea-app/genea/pkg/license"
	"github.com/genea-app/genea/pkg/storage"
)

const InternalServerErrorMsg = "Internal Server Error"

var (
	// AuthzNotAllowed is returned when the caller's role does not grant the operation.
	AuthzNotAllowed          = NewEncodedError(Forbidden, "you do not have permission to perform this action")
	NotAFamilyMember         = NewEncodedError(NotFound, "family not found")
	InvalidContinuationToken = NewEncodedError(ValidationError, "invalid continuation token")
	LastOwner                = NewEncodedError(Conflict, "a family must keep at least one owner")
	RequestCancelled         = NewEncodedError(Cancelled, "request cancelled")
	RequestDeadlineExceeded  = NewEncodedError(DeadlineExceeded, "request timed out")
	RequestTooLarge          = NewEncodedError(PayloadTooLarge, "request body too large")
	LicenseRequiredError     = NewEncodedError(LicenseRequired, "this feature requires an active license or trial")
	InvitationNotPending     = NewEncodedError(Conflict, "invitation is no longer pending")
	InvitationExpired        = NewEncodedError(Conflict, "invitation has expired")
	InvitationEmailMismatch  = NewEncodedError(Forbidden, "invitation was sent to a different email address")
)

// InternalError is an error that is used to hide internal errors from the
// caller while keeping the cause available for logging.
type InternalError struct {
	public   string
	internal error
}

// Error returns the public message only.
func (e InternalError) Error() string {
	return e.public
}

func (e InternalError) Is(target error) bool {
	return target.Error() == e.Error()
}

func (e InternalError) Unwrap() error {
	return e.internal
}

// NewInternalError returns an error that is decorated with a public-facing
// error message. It is used to return errors to the caller without exposing
// internal details, while preserving them for logs.
func NewInternalError(public string, internal error) InternalError {
	if public == "" {
		public = InternalServerErrorMsg
	}

	return InternalError{
		public:   public,
		internal: internal,
	}
}

func ValidationFailed(format string, args ...interface{}) *EncodedError {
	return NewEncodedError(ValidationError, fmt.Sprintf(format, args...))
}

func ResourceNotFound(resource string) *EncodedError {
	return NewEncodedError(NotFound, resource+" not found")
}

// HandleError translates err into an error that can be returned to the caller.
// public is used as the message of errors that have no client meaning.
func HandleError(public string, err error) error {
	var encoded *EncodedError
	var internal InternalError
	var validation *storage.ValidationError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &encoded):
		return encoded
	case errors.As(err, &internal):
		return internal
	case errors.As(err, &validation):
		return NewEncodedError(ValidationError, validation.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		return NewEncodedError(ValidationError, err.Error())
	case errors.Is(err, storage.ErrInvalidContinuationToken):
		return InvalidContinuationToken
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return NewEncodedError(NotFound, "resource not found")
	case errors.Is(err, storage.ErrLastOwner):
		return LastOwner
	case errors.Is(err, storage.ErrCollision):
		return NewEncodedError(Conflict, "resource already exists")
	case errors.Is(err, storage.ErrInvalidReference):
		return NewEncodedError(ValidationError, "referenced resource does not exist")
	case errors.Is(err, blob.ErrInvalidKey):
		return NewEncodedError(ValidationError, "invalid file name")
	case errors.Is(err, authn.ErrMissingBearerToken):
		return NewEncodedError(BearerTokenMissing, "missing bearer token")
	case errors.Is(err, authn.ErrInvalidToken):
		return NewEncodedError(InvalidBearerToken, "invalid bearer token")
	case errors.Is(err, authn.ErrUnauthenticated):
		return NewEncodedError(Unauthenticated, "unauthenticated")
	case errors.Is(err, license.ErrLicenseRequired):
		return LicenseRequiredError
	case errors.Is(err, license.ErrTrialAlreadyUsed),
		errors.Is(err, license.ErrAlreadyLicensed),
		errors.Is(err, license.ErrFreeFamily):
		return NewEncodedError(Conflict, err.Error())
	case errors.Is(err, license.ErrNoLicense):
		return NewEncodedError(NotFound, err.Error())
	case errors.Is(err, license.ErrInvalidPlan), errors.Is(err, license.ErrInvalidDuration):
		return NewEncodedError(ValidationError, err.Error())
	case errors.Is(err, context.Canceled):
		return RequestCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return RequestDeadlineExceeded
	default:
		return NewInternalError(public, err)
	}
}
