// Package http contains the JSON envelope every response is written in and
// the HTTP middlewares that depend on it.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/genea-app/genea/pkg/middleware"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
)

// Response is the body of every successful response.
type Response struct {
	Success           bool    `json:"success"`
	Data              any     `json:"data,omitempty"`
	ContinuationToken *string `json:"continuation_token,omitempty"`
}

// ErrorResponse is the body of every failed response.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Error   serverErrors.ErrorCode `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteData writes data in a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// WriteList writes a page of items and the token of the next page. The token
// is always present, empty when there are no more pages.
func WriteList(w http.ResponseWriter, items any, continuationToken string) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: items, ContinuationToken: &continuationToken})
}

// WriteNoContent answers a successful request that has nothing to return.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes err in an error envelope. Errors that are not encoded are
// reported as internal errors, and the original error is kept on the request
// for logging.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = serverErrors.RequestTooLarge
	}

	middleware.SetError(r.Context(), err)

	encoded := serverErrors.Encode(err)
	writeJSON(w, encoded.HTTPStatusCode, ErrorResponse{
		Success: false,
		Message: encoded.Message(),
		Error:   encoded.Code(),
	})
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return serverErrors.RequestTooLarge
		}
		return serverErrors.ValidationFailed("invalid request body: %s", err)
	}
	return nil
}

// NotFoundHandler answers requests that match no route.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, serverErrors.NewEncodedError(serverErrors.UndefinedEndpoint, "undefined endpoint "+r.Method+" "+r.URL.Path))
	})
}

// RouteHandler serves mux and renders the replies mux gives to unrouted
// requests as error envelopes: unknown paths get undefined_endpoint and a
// known path called with the wrong method gets method_not_allowed.
func RouteHandler(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		reply := &unroutedReply{header: http.Header{}}
		h.ServeHTTP(reply, r)

		if reply.status != http.StatusMethodNotAllowed {
			NotFoundHandler().ServeHTTP(w, r)
			return
		}
		if allow := reply.header.Get("Allow"); allow != "" {
			w.Header().Set("Allow", allow)
		}
		WriteError(w, r, serverErrors.NewEncodedError(serverErrors.MethodNotAllowed, "method "+r.Method+" not allowed on "+r.URL.Path))
	})
}

// unroutedReply keeps the status and headers of a ServeMux fallback reply
// and discards its plain text body.
type unroutedReply struct {
	header http.Header
	status int
}

func (u *unroutedReply) Header() http.Header { return u.header }

func (u *unroutedReply) Write(b []byte) (int, error) {
	if u.status == 0 {
		u.status = http.StatusOK
	}
	return len(b), nil
}

func (u *unroutedReply) WriteHeader(status int) {
	if u.status == 0 {
		u.status = status
	}
}
