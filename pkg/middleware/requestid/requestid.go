package requestid

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
)

const (
	requestIDKey      = "request_id"
	requestIDTraceKey = "request_id"

	// RequestIDHeader defines the HTTP header that is set in each HTTP response
	// for a given request. The value of the header is unique per request.
	RequestIDHeader = "X-Request-Id"
)

// InitID returns the ID to be used to identify the request.
// If trace is enabled, returns trace ID; otherwise returns a new ULID.
func InitID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.TraceID().IsValid() {
		return spanCtx.TraceID().String()
	}
	return ulid.Make().String()
}

// Handler assigns an id to every request, returns it in the X-Request-Id
// header and adds it to the log fields and the active span. It must come
// after the tracing middleware and before the logging middleware.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, info := middleware.EnsureRequestInfo(r)

		requestID := InitID(r.Context())
		info.RequestID = requestID

		w.Header().Set(RequestIDHeader, requestID)
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String(requestIDTraceKey, requestID))

		ctx := logger.ContextWithFields(r.Context(), zap.String(requestIDKey, requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the id assigned to the request served with ctx.
func FromContext(ctx context.Context) (string, bool) {
	id := middleware.RequestInfoFromContext(ctx).RequestID
	return id, id != ""
}
