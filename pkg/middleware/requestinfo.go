package middleware

import (
	"context"
	"net/http"
)

// RequestInfo is filled in while a request is served and read by the
// middlewares that report on it once the handler returns.
type RequestInfo struct {
	RequestID string
	Route     string
	UserID    string

	// Err is the error the response was built from, including internal causes.
	Err error
}

type requestInfoKey struct{}

// ContextWithRequestInfo attaches info to ctx.
func ContextWithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the RequestInfo attached to ctx. It returns a
// throwaway value when there is none so callers can always write to it.
func RequestInfoFromContext(ctx context.Context) *RequestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		return info
	}
	return &RequestInfo{}
}

// EnsureRequestInfo returns r carrying a RequestInfo, attaching a new one if needed.
func EnsureRequestInfo(r *http.Request) (*http.Request, *RequestInfo) {
	if info, ok := r.Context().Value(requestInfoKey{}).(*RequestInfo); ok {
		return r, info
	}
	info := &RequestInfo{}
	return r.WithContext(ContextWithRequestInfo(r.Context(), info)), info
}

// SetRoute records the matched route pattern of the request.
func SetRoute(ctx context.Context, route string) {
	RequestInfoFromContext(ctx).Route = route
}

// SetUserID records the authenticated subject of the request.
func SetUserID(ctx context.Context, userID string) {
	RequestInfoFromContext(ctx).UserID = userID
}

// SetError records the error a failed response was built from.
func SetError(ctx context.Context, err error) {
	RequestInfoFromContext(ctx).Err = err
}
