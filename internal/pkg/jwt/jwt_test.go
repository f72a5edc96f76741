package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParse(t *testing.T) {
	SetSecret("test-secret")
	token, err := Sign("owner-1", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.Equal(t, Issuer, claims.Issuer)

	_, err = Sign("", time.Hour)
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestParseRejects(t *testing.T) {
	SetSecret("test-secret")
	expired, err := Sign("owner-1", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired)
	assert.True(t, errors.Is(err, jwtlib.ErrTokenExpired))

	foreign, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		OwnerID: "owner-1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = Parse(foreign)
	assert.Error(t, err)

	token, err := Sign("owner-1", time.Hour)
	require.NoError(t, err)
	SetSecret("other-secret")
	_, err = Parse(token)
	assert.Error(t, err)
}
