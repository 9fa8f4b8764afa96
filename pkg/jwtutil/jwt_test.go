package jwtutil

import (
	"testing"

	"base44/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(key string) *Manager {
	return NewManager(&config.JWTConfig{SigningKey: key, ExpirationHours: 1})
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager("test-signing-key")

	token, err := m.Generate("owner@acme.test", 12, 3, "owner")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.test", claims.Email)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, uint(3), claims.TenantID)
	assert.Equal(t, "owner", claims.Role)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := newTestManager("test-signing-key")

	_, err := m.Validate("not-a-token")
	assert.Error(t, err)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	m := newTestManager("key-one")
	other := newTestManager("key-two")

	token, err := m.Generate("owner@acme.test", 1, 1, "owner")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}
