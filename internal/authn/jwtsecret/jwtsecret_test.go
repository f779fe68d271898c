package jwtsecret

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/internal/authn"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, key string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func requestWith(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/families", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestNewSecretAuthenticatorRequiresLongSecret(t *testing.T) {
	_, err := NewSecretAuthenticator("short", "", "")
	require.Error(t, err)
}

func TestSecretAuthenticator(t *testing.T) {
	authenticator, err := NewSecretAuthenticator(secret, "authenticated", "")
	require.NoError(t, err)
	defer authenticator.Close()

	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":   "5b2f9a1e-user",
			"email": "Ana@Example.com",
			"aud":   "authenticated",
			"role":  "authenticated",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
		}
	}

	t.Run("valid_token", func(t *testing.T) {
		claims, err := authenticator.Authenticate(requestWith(sign(t, secret, jwt.SigningMethodHS256, valid())))
		require.NoError(t, err)
		require.Equal(t, "5b2f9a1e-user", claims.Subject)
		require.Equal(t, "ana@example.com", claims.Email)
	})

	errorCases := map[string]struct {
		token    func() string
		expected error
	}{
		`missing_header`: {
			token:    func() string { return "" },
			expected: authn.ErrMissingBearerToken,
		},
		`wrong_secret`: {
			token: func() string {
				return sign(t, "another-secret-that-is-also-32-chars-long!", jwt.SigningMethodHS256, valid())
			},
			expected: authn.ErrInvalidToken,
		},
		`expired`: {
			token: func() string {
				c := valid()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return sign(t, secret, jwt.SigningMethodHS256, c)
			},
			expected: authn.ErrInvalidToken,
		},
		`missing_expiry`: {
			token: func() string {
				c := valid()
				delete(c, "exp")
				return sign(t, secret, jwt.SigningMethodHS256, c)
			},
			expected: authn.ErrInvalidToken,
		},
		`wrong_audience`: {
			token: func() string {
				c := valid()
				c["aud"] = "someone-else"
				return sign(t, secret, jwt.SigningMethodHS256, c)
			},
			expected: authn.ErrInvalidToken,
		},
		`wrong_algorithm`: {
			token: func() string {
				return sign(t, secret, jwt.SigningMethodHS512, valid())
			},
			expected: authn.ErrInvalidToken,
		},
		`missing_subject`: {
			token: func() string {
				c := valid()
				delete(c, "sub")
				return sign(t, secret, jwt.SigningMethodHS256, c)
			},
			expected: errInvalidSubject,
		},
		`anonymous_role`: {
			token: func() string {
				c := valid()
				c["role"] = "anon"
				return sign(t, secret, jwt.SigningMethodHS256, c)
			},
			expected: errInvalidClaims,
		},
		`garbage`: {
			token:    func() string { return "not.a.jwt" },
			expected: authn.ErrInvalidToken,
		},
	}

	for name, tc := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := authenticator.Authenticate(requestWith(tc.token()))
			require.ErrorIs(t, err, tc.expected)
		})
	}
}
