package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry reads the exp claim of an access token without checking its
// signature. The dashboard only displays it; the remote API remains the
// judge of token validity.
func Expiry(token string) (time.Time, bool) {
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

// ErrExpired is reported by Expired for tokens whose exp lies in the past.
var ErrExpired = errors.New("access token expired")

// Expired returns ErrExpired when token carries an exp claim before now.
// Tokens without a readable exp are not considered expired.
func Expired(token string, now time.Time) error {
	if exp, ok := Expiry(token); ok && !exp.After(now) {
		return ErrExpired
	}
	return nil
}
