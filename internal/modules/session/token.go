package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryBuffer treats tokens this close to expiry as already expired
const DefaultExpiryBuffer = 60 * time.Second

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key; the server stays the authority.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsTokenExpired reports whether token expires within buffer of now.
// Tokens that cannot be decoded or carry no exp claim count as expired.
func IsTokenExpired(token string, buffer time.Duration, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return true
	}
	return !now.Add(buffer).Before(exp)
}
