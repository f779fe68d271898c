// Package health contains the readiness check served at /healthz.
package health

import (
	"context"
	"net/http"

	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
)

// TargetService defines an interface that services can implement for server health checks.
type TargetService interface {
	IsReady(ctx context.Context) (bool, error)
}

type Status string

const (
	Serving    Status = "SERVING"
	NotServing Status = "NOT_SERVING"
)

type Response struct {
	Status Status `json:"status"`
}

// Checker answers health checks for TargetService. It bypasses authentication.
type Checker struct {
	TargetService
}

func (o *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ready, err := o.IsReady(r.Context())
	if err != nil {
		httpmiddleware.WriteError(w, r, serverErrors.NewEncodedError(serverErrors.InternalServerError, "datastore is not ready"))
		return
	}

	if !ready {
		httpmiddleware.WriteData(w, http.StatusServiceUnavailable, Response{Status: NotServing})
		return
	}

	httpmiddleware.WriteData(w, http.StatusOK, Response{Status: Serving})
}
