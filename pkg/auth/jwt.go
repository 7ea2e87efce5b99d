package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates bearer tokens and extracts the caller address.
type JWTValidator struct {
	secret []byte
}

// Claims are the JWT claims accepted by the disbursement API. The subject
// is the caller's chain address.
type Claims struct {
	jwt.RegisteredClaims
}

// NewJWTValidator creates a validator over an HMAC signing secret.
// Returns nil for an empty secret; middleware fails closed on a nil validator.
func NewJWTValidator(secret []byte) *JWTValidator {
	if len(secret) == 0 {
		return nil
	}
	return &JWTValidator{secret: secret}
}

// Validate parses and validates a token string, returning the caller address.
func (v *JWTValidator) Validate(tokenStr string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("validator uninitialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	return claims.Subject, nil
}
