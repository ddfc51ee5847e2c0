// Package auth verifies access tokens issued by the application that embeds
// the vault engine. The vault never authenticates users on its own; a valid
// token only tells it whose data a request addresses.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Claims carries the registered claims plus the user identifier. Tokens
// from identity layers that only set the standard "sub" claim are accepted
// too; UserID wins when both are present.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GetUserIDFromToken validates tokenString and returns the user it addresses.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// verification yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if !token.Valid || userID == "" {
		return "", common.ErrInvalidToken
	}

	return userID, nil
}
