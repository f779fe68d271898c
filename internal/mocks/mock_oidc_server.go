package mocks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type MockOidcServer struct {
	URL string

	privateKey *rsa.PrivateKey
	server     *httptest.Server
}

const kidHeader = "1"

// NewMockOidcServer starts an OIDC discovery and JWKS endpoint on a random
// local port, signing tokens with a fresh RSA key. You must call Stop afterward.
func NewMockOidcServer() (*MockOidcServer, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	mock := &MockOidcServer{privateKey: privateKey}
	mock.server = httptest.NewServer(mock.handler())
	mock.URL = mock.server.URL
	return mock, nil
}

func (m *MockOidcServer) handler() http.Handler {
	publicKey := m.privateKey.Public().(*rsa.PublicKey)
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   m.URL,
			"jwks_uri": m.URL + "/jwks.json",
		})
	})

	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{
				{
					"kid": kidHeader,
					"kty": "RSA",
					"alg": "RS256",
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
				},
			},
		})
	})

	return mux
}

func (m *MockOidcServer) Stop() {
	m.server.Close()
}

// GetToken signs a short-lived token issued by this server.
func (m *MockOidcServer) GetToken(audience, subject, email string) (string, error) {
	return m.SignClaims(jwt.MapClaims{
		"iss":   m.URL,
		"aud":   []string{audience},
		"sub":   subject,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
}

// SignClaims signs arbitrary claims with the server key.
func (m *MockOidcServer) SignClaims(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kidHeader
	return token.SignedString(m.privateKey)
}
