package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/logger"
)

func TestRequestInfo(t *testing.T) {
	info := &RequestInfo{RequestID: "01H"}
	ctx := ContextWithRequestInfo(context.Background(), info)

	SetRoute(ctx, "GET /api/families")
	SetUserID(ctx, "user-1")

	require.Equal(t, "GET /api/families", info.Route)
	require.Equal(t, "user-1", info.UserID)

	// without info attached writes are dropped
	SetRoute(context.Background(), "ignored")
	require.Empty(t, RequestInfoFromContext(context.Background()).Route)
}

func TestTimeoutHandler(t *testing.T) {
	var deadline time.Time
	handler := NewTimeoutHandler(time.Second, logger.NewNoopLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, deadline.IsZero())
	require.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

	t.Run("disabled", func(t *testing.T) {
		handler := NewTimeoutHandler(0, logger.NewNoopLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := r.Context().Deadline()
			require.False(t, ok)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestMaxBytesHandler(t *testing.T) {
	var readErr error
	handler := MaxBytesHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}), 4)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abc")))
	require.NoError(t, readErr)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcdef")))
	var maxBytesErr *http.MaxBytesError
	require.ErrorAs(t, readErr, &maxBytesErr)
}

func TestEnsureRequestInfo(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	r, info := EnsureRequestInfo(r)
	info.RequestID = "abc"

	r2, info2 := EnsureRequestInfo(r)
	require.Same(t, r, r2)
	require.Same(t, info, info2)
	require.Equal(t, "abc", RequestInfoFromContext(r2.Context()).RequestID)
}
