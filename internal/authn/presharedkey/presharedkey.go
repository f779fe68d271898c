package presharedkey

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/authclaims"
)

// ServiceSubject is the subject requests authenticated with a preshared key act as.
const ServiceSubject = "service"

type PresharedKeyAuthenticator struct {
	ValidKeys [][]byte
}

var _ authn.Authenticator = (*PresharedKeyAuthenticator)(nil)

func NewPresharedKeyAuthenticator(validKeys []string) (*PresharedKeyAuthenticator, error) {
	if len(validKeys) < 1 {
		return nil, errors.New("invalid auth configuration, please specify at least one key")
	}
	vKeys := make([][]byte, 0, len(validKeys))
	for _, k := range validKeys {
		if k == "" {
			return nil, errors.New("invalid auth configuration, preshared keys must not be empty")
		}
		vKeys = append(vKeys, []byte(k))
	}

	return &PresharedKeyAuthenticator{ValidKeys: vKeys}, nil
}

func (pka *PresharedKeyAuthenticator) Authenticate(r *http.Request) (*authclaims.AuthClaims, error) {
	token, err := authn.BearerToken(r)
	if err != nil {
		return nil, err
	}

	for _, key := range pka.ValidKeys {
		if subtle.ConstantTimeCompare(key, []byte(token)) == 1 {
			return &authclaims.AuthClaims{
				Subject:  ServiceSubject,
				ClientID: "preshared",
			}, nil
		}
	}

	return nil, authn.ErrUnauthenticated
}

func (pka *PresharedKeyAuthenticator) Close() {}
