package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
)

func TestHTTPLoggingHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		log, logs := logger.NewObserverLogger("debug")

		handler := HTTPLoggingHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			middleware.SetRoute(r.Context(), "GET /api/families")
			middleware.SetUserID(r.Context(), "user-1")
			httpmiddleware.WriteData(w, http.StatusOK, []string{})
		}), log)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/families", nil))

		entries := logs.FilterMessage(httpReqCompleteKey).All()
		require.Len(t, entries, 1)
		require.Equal(t, zapcore.InfoLevel, entries[0].Level)

		fields := entries[0].ContextMap()
		require.Equal(t, "GET /api/families", fields[httpRouteKey])
		require.Equal(t, "user-1", fields[userIDKey])
		require.EqualValues(t, http.StatusOK, fields[httpStatusKey])
		require.NotContains(t, fields, internalErrorKey)
	})

	t.Run("internal_error_logs_cause", func(t *testing.T) {
		log, logs := logger.NewObserverLogger("debug")

		handler := HTTPLoggingHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpmiddleware.WriteError(w, r, serverErrors.NewInternalError("", errors.New("connection refused")))
		}), log)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/families", nil))

		entries := logs.All()
		require.Len(t, entries, 1)
		require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		require.Equal(t, "connection refused", entries[0].ContextMap()[internalErrorKey])
		require.Equal(t, "internal_error", entries[0].ContextMap()[errorCodeKey])
	})

	t.Run("client_error_is_info", func(t *testing.T) {
		log, logs := logger.NewObserverLogger("debug")

		handler := HTTPLoggingHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpmiddleware.WriteError(w, r, serverErrors.AuthzNotAllowed)
		}), log)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/families/x", nil))

		entries := logs.All()
		require.Len(t, entries, 1)
		require.Equal(t, zapcore.InfoLevel, entries[0].Level)
		require.Equal(t, "forbidden", entries[0].ContextMap()[errorCodeKey])
	})

	t.Run("healthy_health_checks_are_not_logged", func(t *testing.T) {
		log, logs := logger.NewObserverLogger("debug")

		handler := HTTPLoggingHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			middleware.SetRoute(r.Context(), healthCheckRoute)
			w.WriteHeader(http.StatusOK)
		}), log)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, 0, logs.Len())
	})
}
