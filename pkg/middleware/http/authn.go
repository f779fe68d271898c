package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/authclaims"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
)

// AuthnHandler authenticates every request with authenticator and stores the
// resulting claims in the request context.
func AuthnHandler(next http.Handler, authenticator authn.Authenticator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticator.Authenticate(r)
		if err != nil {
			WriteError(w, r, serverErrors.HandleError("", err))
			return
		}

		ctx := r.Context()
		middleware.SetUserID(ctx, claims.Subject)
		ctx = logger.ContextWithFields(ctx, zap.String("user_id", claims.Subject))
		ctx = authclaims.ContextWithAuthClaims(ctx, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
