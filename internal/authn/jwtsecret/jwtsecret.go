// Package jwtsecret authenticates HS256 access tokens signed with a shared
// secret, the format issued by hosted auth providers such as Supabase Auth.
package jwtsecret

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/authclaims"
)

var (
	errInvalidSubject = fmt.Errorf("%w: missing subject", authn.ErrInvalidToken)
	errInvalidClaims  = fmt.Errorf("%w: invalid claims", authn.ErrInvalidToken)
)

// Claims are the access token claims Genea reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type SecretAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

var _ authn.Authenticator = (*SecretAuthenticator)(nil)

// NewSecretAuthenticator validates tokens against secret. Audience and issuer
// are checked only when not empty.
func NewSecretAuthenticator(secret, audience, issuer string) (*SecretAuthenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("invalid auth configuration, the jwt secret must be at least 32 bytes")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30 * time.Second),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &SecretAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

func (s *SecretAuthenticator) Authenticate(r *http.Request) (*authclaims.AuthClaims, error) {
	raw, err := authn.BearerToken(r)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, authn.ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errInvalidSubject
	}
	if claims.Role == "anon" {
		return nil, errInvalidClaims
	}

	return &authclaims.AuthClaims{
		Subject: claims.Subject,
		Email:   strings.ToLower(claims.Email),
		Scopes:  map[string]bool{},
	}, nil
}

func (s *SecretAuthenticator) Close() {}
