package authn

import (
	"errors"
	"net/http"
	"strings"

	"github.com/genea-app/genea/pkg/authclaims"
)

//go:generate mockgen -source authn.go -destination ../mocks/mock_authenticator.go -package mocks Authenticator

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrMissingBearerToken = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid bearer token")
)

type Authenticator interface {
	// Authenticate returns a nil error and the AuthClaims info (if available) if the subject is authenticated or a
	// non-nil error with an appropriate error cause otherwise.
	Authenticate(r *http.Request) (*authclaims.AuthClaims, error)

	// Close cleans up the authenticator resources.
	Close()
}

// AnonymousSubject is the subject every request is attributed to without authentication.
const AnonymousSubject = "anonymous"

// NoopAuthenticator accepts every request as one fixed subject. It is meant for local development.
type NoopAuthenticator struct {
	Subject string
}

var _ Authenticator = (*NoopAuthenticator)(nil)

func (n NoopAuthenticator) Authenticate(*http.Request) (*authclaims.AuthClaims, error) {
	subject := n.Subject
	if subject == "" {
		subject = AnonymousSubject
	}
	return &authclaims.AuthClaims{
		Subject: subject,
	}, nil
}

func (n NoopAuthenticator) Close() {}

// OidcConfig contains authorization server metadata. See https://datatracker.ietf.org/doc/html/rfc8414#section-2
type OidcConfig struct {
	Issuer  string `json:"issuer"`
	JWKsURI string `json:"jwks_uri"`
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearerToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearerToken
	}
	return token, nil
}
