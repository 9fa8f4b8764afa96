package jwtutil

import (
	"time"

	"base44/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

// UserClaims represents the JWT claims for an authenticated user. Every token
// carries the user's home tenant so tenant-scoped endpoints can enforce
// isolation without a database lookup.
type UserClaims struct {
	Email    string `json:"email"`
	UserID   uint   `json:"user_id"`
	TenantID uint   `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens. Construct one from config and
// inject it; there is no package-level key.
type Manager struct {
	signingKey []byte
	expiry     time.Duration
}

// NewManager creates a token manager from JWT configuration
func NewManager(cfg *config.JWTConfig) *Manager {
	hours := cfg.ExpirationHours
	if hours <= 0 {
		hours = 24
	}
	return &Manager{
		signingKey: []byte(cfg.SigningKey),
		expiry:     time.Duration(hours) * time.Hour,
	}
}

// Generate creates a signed token embedding user and tenant identity
func (m *Manager) Generate(email string, userID, tenantID uint, role string) (string, error) {
	claims := UserClaims{
		Email:    email,
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses a token string and returns its claims
func (m *Manager) Validate(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
