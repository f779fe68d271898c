package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/authclaims"
)

type RemoteOidcAuthenticator struct {
	IssuerURLs []string
	Audience   string

	JwksURI string
	JWKs    *keyfunc.JWKS

	httpClient *http.Client
}

var (
	jwkRefreshInterval = 48 * time.Hour

	errInvalidAudience = fmt.Errorf("%w: invalid audience", authn.ErrInvalidToken)
	errInvalidClaims   = fmt.Errorf("%w: invalid claims", authn.ErrInvalidToken)
	errInvalidIssuer   = fmt.Errorf("%w: invalid issuer", authn.ErrInvalidToken)
	errInvalidSubject  = fmt.Errorf("%w: invalid subject", authn.ErrInvalidToken)

	fetchJWKs = fetchJWK
)

var _ authn.Authenticator = (*RemoteOidcAuthenticator)(nil)

// NewRemoteOidcAuthenticator discovers the JWKS of the first issuer URL. The
// remaining URLs are accepted as issuer aliases.
func NewRemoteOidcAuthenticator(issuerURLs []string, audience string) (*RemoteOidcAuthenticator, error) {
	if len(issuerURLs) == 0 || issuerURLs[0] == "" {
		return nil, errors.New("invalid auth configuration, the oidc issuer is required")
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	oidc := &RemoteOidcAuthenticator{
		IssuerURLs: issuerURLs,
		Audience:   audience,
		httpClient: client.StandardClient(),
	}
	err := fetchJWKs(oidc)
	if err != nil {
		return nil, err
	}
	return oidc, nil
}

func (oidc *RemoteOidcAuthenticator) Authenticate(r *http.Request) (*authclaims.AuthClaims, error) {
	raw, err := authn.BearerToken(r)
	if err != nil {
		return nil, err
	}

	jwtParser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuedAt())

	token, err := jwtParser.Parse(raw, func(token *jwt.Token) (any, error) {
		return oidc.JWKs.Keyfunc(token)
	})
	if err != nil || !token.Valid {
		return nil, authn.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}

	issuer, err := claims.GetIssuer()
	if err != nil || !slices.Contains(oidc.IssuerURLs, issuer) {
		return nil, errInvalidIssuer
	}

	if oidc.Audience != "" {
		audience, err := claims.GetAudience()
		if err != nil || !slices.Contains(audience, oidc.Audience) {
			return nil, errInvalidAudience
		}
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errInvalidSubject
	}

	principal := &authclaims.AuthClaims{
		Subject: subject,
		Scopes:  make(map[string]bool),
	}

	if email, ok := claims["email"].(string); ok {
		principal.Email = strings.ToLower(email)
	}
	if clientID, ok := claims["azp"].(string); ok {
		principal.ClientID = clientID
	}

	// optional scopes
	if scope, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(scope) {
			principal.Scopes[s] = true
		}
	}

	return principal, nil
}

func fetchJWK(oidc *RemoteOidcAuthenticator) error {
	oidcConfig, err := oidc.GetConfiguration()
	if err != nil {
		return fmt.Errorf("error fetching OIDC configuration: %w", err)
	}

	oidc.JwksURI = oidcConfig.JWKsURI
	jwks, err := oidc.GetKeys()
	if err != nil {
		return fmt.Errorf("error fetching OIDC keys: %w", err)
	}

	oidc.JWKs = jwks

	return nil
}

func (oidc *RemoteOidcAuthenticator) GetKeys() (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(oidc.JwksURI, keyfunc.Options{
		Client:          oidc.httpClient,
		RefreshInterval: jwkRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching keys from %v: %w", oidc.JwksURI, err)
	}
	return jwks, nil
}

func (oidc *RemoteOidcAuthenticator) GetConfiguration() (*authn.OidcConfig, error) {
	wellKnown := strings.TrimSuffix(oidc.IssuerURLs[0], "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, fmt.Errorf("error forming request to get OIDC: %w", err)
	}

	res, err := oidc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting OIDC: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code getting OIDC: %v", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	oidcConfig := &authn.OidcConfig{}
	if err := json.Unmarshal(body, oidcConfig); err != nil {
		return nil, fmt.Errorf("failed parsing document: %w", err)
	}

	if oidcConfig.Issuer == "" {
		return nil, errors.New("missing issuer value")
	}

	if oidcConfig.JWKsURI == "" {
		return nil, errors.New("missing jwks_uri value")
	}
	return oidcConfig, nil
}

func (oidc *RemoteOidcAuthenticator) Close() {
	if oidc.JWKs != nil {
		oidc.JWKs.EndBackground()
	}
}
