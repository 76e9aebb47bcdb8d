package jwt

import "github.com/golang-jwt/jwt"

// Payload is the subset of the identity service's session token claims the gateway reads.
// The gateway never signs tokens and does not hold the identity service's key; it only
// inspects a persisted token before deciding whether rehydration is worth a remote call.
type Payload struct {
	// StandardClaims carries Exp, Iat, Iss and Sub (the user id).
	jwt.StandardClaims

	// Email is the account e-mail the token was issued for.
	Email string `json:"email,omitempty"`
}
