package server

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/genea-app/genea/pkg/authclaims"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

var errMissingClaims = serverErrors.NewEncodedError(serverErrors.Unauthenticated, "unauthenticated")

func claimsFromContext(ctx context.Context) (*authclaims.AuthClaims, error) {
	claims, ok := authclaims.AuthClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return nil, errMissingClaims
	}
	return claims, nil
}

// authorize checks that the caller is a member of familyID holding at least
// role minRole. Non-members are told the family does not exist.
func (s *Server) authorize(ctx context.Context, familyID string, minRole storage.Role) (*storage.FamilyMember, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("family_id", familyID),
		attribute.String("required_role", string(minRole)),
	)

	member, err := s.datastore.GetMember(ctx, familyID, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serverErrors.NotAFamilyMember
		}
		return nil, serverErrors.HandleError("", err)
	}

	if !member.Role.AtLeast(minRole) {
		return nil, serverErrors.AuthzNotAllowed
	}
	return member, nil
}

// notFound translates ErrNotFound into a not_found error naming resource.
func notFound(resource string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return serverErrors.ResourceNotFound(resource)
	}
	return serverErrors.HandleError("", err)
}
