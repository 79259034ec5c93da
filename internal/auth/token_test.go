// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens and foreign issuers

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	token, err := verifier.Generate("account-123", time.Hour)
	require.NoError(t, err)

	gotID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "account-123", gotID)
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	other, err := NewJWTVerifier([]byte("another-secret-key-for-signing!!")).Generate("account-123", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	token, err := verifier.Generate("account-123", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_RejectsForeignClaims(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	_, err := verifier.Verify(sign(jwt.RegisteredClaims{Issuer: "someone-else", Subject: "x", ExpiresAt: exp}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.Verify(sign(jwt.RegisteredClaims{Issuer: issuer, Subject: "x"}))
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens without exp are rejected")

	_, err = verifier.Verify(sign(jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: exp}))
	assert.ErrorIs(t, err, ErrMissingClaim)
}
