// Package auth issues and verifies JWTs for the optional admin-gated
// endpoints. Authentication is not a hard requirement of the server —
// when no secret is configured, the API layer skips the middleware
// entirely — but the hook is wired the way the teacher wires it.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role values recognized by the API layer's admin gate.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims is the JWT payload embedded in every authenticated request.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // "user" | "admin"
	jwt.RegisteredClaims
}

// JWTManager signs and verifies tokens with a single shared HMAC
// secret, matching single-tenant deployment (no per-tenant key
// rotation).
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager constructs a JWTManager bound to a secret and expiry.
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), expiry: expiry}
}

// Generate creates a signed JWT for the given user/role.
func (m *JWTManager) Generate(userID, role string) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token string, returning its claims.
func (m *JWTManager) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// IsAdmin reports whether claims grants the admin role. A nil claims
// (unauthenticated request) is never admin.
func IsAdmin(claims *Claims) bool {
	return claims != nil && claims.Role == RoleAdmin
}
