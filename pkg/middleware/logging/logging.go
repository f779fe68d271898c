package logging

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
)

const (
	httpMethodKey      = "http_method"
	httpPathKey        = "http_path"
	httpRouteKey       = "http_route"
	httpStatusKey      = "http_status"
	requestIDKey       = "request_id"
	userIDKey          = "user_id"
	traceIDKey         = "trace_id"
	userAgentKey       = "user_agent"
	internalErrorKey   = "internal_error"
	errorCodeKey       = "error_code"
	queryDurationKey   = "query_duration_ms"
	httpReqCompleteKey = "http_request_complete"

	healthCheckRoute = "GET /healthz"
)

// HTTPLoggingHandler logs one http_request_complete entry per request. Server
// errors are logged at error level together with their internal cause.
func HTTPLoggingHandler(next http.Handler, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, info := middleware.EnsureRequestInfo(r)

		m := httpsnoop.CaptureMetrics(next, w, r)

		if info.Route == healthCheckRoute && m.Code == http.StatusOK {
			return
		}

		fields := []zap.Field{
			zap.String(httpMethodKey, r.Method),
			zap.String(httpPathKey, r.URL.Path),
			zap.String(httpRouteKey, info.Route),
			zap.Int(httpStatusKey, m.Code),
			zap.String(queryDurationKey, strconv.FormatInt(m.Duration.Milliseconds(), 10)),
		}

		if info.RequestID != "" {
			fields = append(fields, zap.String(requestIDKey, info.RequestID))
		}
		if info.UserID != "" {
			fields = append(fields, zap.String(userIDKey, info.UserID))
		}
		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.HasTraceID() {
			fields = append(fields, zap.String(traceIDKey, spanCtx.TraceID().String()))
		}
		if userAgent := r.UserAgent(); userAgent != "" {
			fields = append(fields, zap.String(userAgentKey, userAgent))
		}

		if info.Err != nil {
			fields = append(fields, zap.String(errorCodeKey, string(serverErrors.Encode(info.Err).Code())))

			var internalError serverErrors.InternalError
			if errors.As(info.Err, &internalError) && internalError.Unwrap() != nil {
				fields = append(fields, zap.String(internalErrorKey, internalError.Unwrap().Error()))
			}
		}

		if m.Code >= http.StatusInternalServerError {
			l.Error(httpReqCompleteKey, fields...)
			return
		}

		l.Info(httpReqCompleteKey, fields...)
	})
}
