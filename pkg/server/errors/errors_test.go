package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/blob"
	"github.com/genea-app/genea/pkg/license"
	"github.com/genea-app/genea/pkg/storage"
)

func TestInternalErrorDontLeakInternals(t *testing.T) {
	err := NewInternalError("public", errors.New("internal"))

	require.NotContains(t, err.Error(), "internal")
	require.EqualError(t, err.Unwrap(), "internal")
}

func TestInternalErrorsWithNoMessageReturnsInternalServiceError(t *testing.T) {
	err := NewInternalError("", errors.New("internal"))

	require.Contains(t, err.Error(), InternalServerErrorMsg)
}

func TestEncodedErrorStatusCodes(t *testing.T) {
	tests := map[ErrorCode]int{
		ValidationError:     http.StatusBadRequest,
		BearerTokenMissing:  http.StatusUnauthorized,
		InvalidBearerToken:  http.StatusUnauthorized,
		Forbidden:           http.StatusForbidden,
		LicenseRequired:     http.StatusForbidden,
		NotFound:            http.StatusNotFound,
		Conflict:            http.StatusConflict,
		PayloadTooLarge:     http.StatusRequestEntityTooLarge,
		InternalServerError: http.StatusInternalServerError,
		ErrorCode("bogus"):  http.StatusInternalServerError,
	}

	for code, status := range tests {
		t.Run(string(code), func(t *testing.T) {
			err := NewEncodedError(code, "error message")
			require.Equal(t, status, err.HTTPStatusCode)
			require.Equal(t, code, err.Code())
			require.Equal(t, "error message", err.Error())
		})
	}
}

func TestEncode(t *testing.T) {
	encoded := Encode(fmt.Errorf("wrapped: %w", AuthzNotAllowed))
	require.Equal(t, Forbidden, encoded.Code())

	encoded = Encode(NewInternalError("could not save", errors.New("disk full")))
	require.Equal(t, InternalServerError, encoded.Code())
	require.Equal(t, "could not save", encoded.Message())

	encoded = Encode(errors.New("boom"))
	require.Equal(t, InternalServerErrorMsg, encoded.Message())
	require.Equal(t, http.StatusInternalServerError, encoded.HTTPStatusCode)
}

func TestHandleError(t *testing.T) {
	tests := map[string]struct {
		err  error
		code ErrorCode
	}{
		`not_found`:             {err: storage.ErrNotFound, code: NotFound},
		`blob_not_found`:        {err: blob.ErrNotFound, code: NotFound},
		`collision`:             {err: fmt.Errorf("insert: %w", storage.ErrCollision), code: Conflict},
		`last_owner`:            {err: storage.ErrLastOwner, code: Conflict},
		`invalid_reference`:     {err: storage.ErrInvalidReference, code: ValidationError},
		`invalid_token`:         {err: storage.ErrInvalidContinuationToken, code: ValidationError},
		`invalid_field`:         {err: storage.InvalidField("first_name", "is required"), code: ValidationError},
		`missing_bearer`:        {err: authn.ErrMissingBearerToken, code: BearerTokenMissing},
		`invalid_bearer`:        {err: fmt.Errorf("%w: expired", authn.ErrInvalidToken), code: InvalidBearerToken},
		`unauthenticated`:       {err: authn.ErrUnauthenticated, code: Unauthenticated},
		`license_required`:      {err: license.ErrLicenseRequired, code: LicenseRequired},
		`trial_used`:            {err: license.ErrTrialAlreadyUsed, code: Conflict},
		`no_license`:            {err: license.ErrNoLicense, code: NotFound},
		`invalid_plan`:          {err: license.ErrInvalidPlan, code: ValidationError},
		`context_cancelled`:     {err: context.Canceled, code: Cancelled},
		`deadline_exceeded`:     {err: context.DeadlineExceeded, code: DeadlineExceeded},
		`already_encoded_error`: {err: AuthzNotAllowed, code: Forbidden},
		`unknown`:               {err: errors.New("connection reset"), code: InternalServerError},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.code, Encode(HandleError("", test.err)).Code())
		})
	}

	t.Run("nil", func(t *testing.T) {
		require.NoError(t, HandleError("", nil))
	})

	t.Run("last_owner_message", func(t *testing.T) {
		require.Equal(t, "a family must keep at least one owner", Encode(HandleError("", storage.ErrLastOwner)).Message())
	})

	t.Run("validation_message_names_field", func(t *testing.T) {
		err := HandleError("", storage.InvalidField("birth_date", "must be YYYY, YYYY-MM or YYYY-MM-DD"))
		require.Equal(t, "birth_date: must be YYYY, YYYY-MM or YYYY-MM-DD", err.Error())
	})

	t.Run("internal_keeps_cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := HandleError("failed to list persons", cause)
		require.ErrorIs(t, err, cause)
		require.Equal(t, "failed to list persons", err.Error())
	})
}
