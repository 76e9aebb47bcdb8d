/*
Package jwt inspects session tokens issued by the remote identity service.

Signature verification is the identity service's job: a token the gateway considers
usable is still validated remotely on rehydration. Reading the claims locally only lets
an obviously expired or malformed token be discarded without a network round trip.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// ExpiryLeeway tolerates clock skew between the gateway and the identity service.
const ExpiryLeeway = 30 * time.Second

// ErrMalformedToken is returned for strings that are not a decodable JWT.
var ErrMalformedToken = errors.New("malformed session token")

// Inspect decodes the claims of tokenString without verifying its signature.
func Inspect(tokenString string) (*Payload, error) {
	claims := &Payload{}

	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// Usable reports whether tokenString can still be presented to the identity service at now.
// Tokens without an expiry claim are considered usable; malformed tokens are not.
func Usable(tokenString string, now time.Time) bool {
	claims, err := Inspect(tokenString)
	if err != nil {
		return false
	}

	if claims.ExpiresAt == 0 {
		return true
	}

	return now.Add(-ExpiryLeeway).Unix() < claims.ExpiresAt
}
