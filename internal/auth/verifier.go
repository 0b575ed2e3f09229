package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"
)

// Identity is the claim set the token issuer vouches for. It is resolved once
// per connection or request and never re-checked mid-session.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// TokenVerifier validates a bearer credential. The token issuer is external;
// this service only verifies.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// AccessClaims is the expected JWT payload.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed access tokens.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, rental_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, rental_errors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, rental_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return Identity{}, rental_errors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, rental_errors.ErrUnauthorized
	}

	return Identity{UserID: userID, Email: claims.Email}, nil
}
