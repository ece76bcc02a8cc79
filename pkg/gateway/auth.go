package gateway

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator derives an app identity from the bearer token presented at
// WebSocket handshake (spec §1 "the gateway authenticates the caller").
// Grounded on hivekit's authn module chain, simplified to the one
// capability this gateway needs: a verified app_id claim.
type Authenticator struct {
	keyFunc jwt.Keyfunc
}

// NewAuthenticator builds an Authenticator that verifies tokens with the
// given HMAC secret. A real deployment would use an asymmetric key
// delivered by the platform's provisioning service; the verification
// mechanics are identical either way.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{
		keyFunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		},
	}
}

// AppIDFromToken validates token and extracts its "app_id" claim.
func (a *Authenticator) AppIDFromToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, a.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("gateway: token validation failed: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("gateway: invalid token claims")
	}
	appID, ok := claims["app_id"].(string)
	if !ok || appID == "" {
		return "", fmt.Errorf("gateway: token missing app_id claim")
	}
	return appID, nil
}
