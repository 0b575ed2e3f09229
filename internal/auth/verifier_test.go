package auth

import (
	"testing"
	"time"

	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, AccessClaims{
			UserID: userID.String(),
			Email:  "owner@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		identity, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, identity.UserID)
		assert.Equal(t, "owner@example.com", identity.Email)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := verifier.Verify("")
		assert.ErrorIs(t, err, rental_errors.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", AccessClaims{UserID: userID.String()})
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, rental_errors.ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, AccessClaims{
			UserID: userID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, rental_errors.ErrUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		assert.ErrorIs(t, err, rental_errors.ErrUnauthorized)
	})

	t.Run("user id is not a uuid", func(t *testing.T) {
		token := signToken(t, testSecret, AccessClaims{UserID: "42"})
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, rental_errors.ErrUnauthorized)
	})
}
