package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type targetFunc func(ctx context.Context) (bool, error)

func (f targetFunc) IsReady(ctx context.Context) (bool, error) {
	return f(ctx)
}

func TestChecker(t *testing.T) {
	tests := map[string]struct {
		ready      bool
		err        error
		wantStatus int
		wantBody   string
	}{
		"serving":     {ready: true, wantStatus: http.StatusOK, wantBody: "SERVING"},
		"not_serving": {ready: false, wantStatus: http.StatusServiceUnavailable, wantBody: "NOT_SERVING"},
		"error":       {err: errors.New("ping failed"), wantStatus: http.StatusInternalServerError},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			checker := &Checker{TargetService: targetFunc(func(context.Context) (bool, error) {
				return test.ready, test.err
			})}

			w := httptest.NewRecorder()
			checker.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, test.wantStatus, w.Code)
			if test.wantBody != "" {
				require.Equal(t, test.wantBody, gjson.Get(w.Body.String(), "data.status").String())
			} else {
				require.NotContains(t, w.Body.String(), "ping failed")
			}
		})
	}
}
