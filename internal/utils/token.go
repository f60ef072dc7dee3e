package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// TokenExpiresAt extracts the expiry time from a JWT without verifying its
// signature. The device never holds the signing key; verification is the
// backend's job. The claim is inspected only to skip doomed network calls
// with an already-expired token.
func TokenExpiresAt(tokenString string) (time.Time, error) {
	parser := jwt.NewParser()

	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse bearer token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}

	return claims.ExpiresAt.Time, nil
}

// TokenExpired reports whether the token's exp claim is in the past.
// Tokens without an expiry claim are treated as non-expiring.
func TokenExpired(tokenString string, now time.Time) bool {
	exp, err := TokenExpiresAt(tokenString)
	if err != nil {
		return false
	}
	return exp.Before(now)
}
