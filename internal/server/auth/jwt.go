// Package auth is the authorization collaborator: given a bearer
// credential it returns the caller identity or rejects. Token issuance
// lives in the external auth service; this side only verifies.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

// Claims carries the registered claims plus the caller's user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// GenerateToken signs an HS256 token for userID. Used by tests and
// local tooling; production tokens come from the auth service with the
// shared secret.
func GenerateToken(userID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// UserIDFromToken verifies the token and extracts the caller identity.
// Any verification failure maps to common.ErrInvalidToken.
func UserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return 0, common.ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return 0, common.ErrInvalidToken
	}
	return claims.UserID, nil
}
