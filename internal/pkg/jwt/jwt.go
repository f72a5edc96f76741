// Package jwt issues and verifies the dashboard bearer tokens. A token names
// the owner whose automations the caller may manage.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	Issuer        = "replyflow"
	defaultSecret = "replyflow-secret-change-me"
)

var (
	secret = []byte(defaultSecret)

	ErrNoOwner = errors.New("token has no owner")
)

// SetSecret configures the signing secret. Empty keeps the current one.
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

// Claims is the token payload.
type Claims struct {
	OwnerID string `json:"uid"`
	jwtlib.RegisteredClaims
}

// Sign issues a token for ownerID valid for ttl.
func Sign(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", ErrNoOwner
	}
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   ownerID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies signature, expiry and issuer and returns the claims.
func Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(Issuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.OwnerID == "" {
		return nil, ErrNoOwner
	}
	return claims, nil
}
