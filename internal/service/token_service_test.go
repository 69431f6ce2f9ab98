package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/pkg/config"
)

func mintToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestTokenServiceParse(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := mintToken(t, "test-secret", &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestTokenServiceParseWrongSecret(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := mintToken(t, "other-secret", &models.JWTClaims{UserID: "user-1", Role: models.RoleManager})

	_, err := svc.Parse(raw)
	assert.Error(t, err)
}

func TestTokenServiceParseExpired(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := mintToken(t, "test-secret", &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.Parse(raw)
	assert.Error(t, err)
}

func TestTokenServiceParseMissingIdentity(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := mintToken(t, "test-secret", &models.JWTClaims{})

	_, err := svc.Parse(raw)
	assert.Error(t, err)
}

func TestTokenServiceParseEnforcesIssuer(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "sme"})
	raw := mintToken(t, "test-secret", &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "someone-else",
		},
	})

	_, err := svc.Parse(raw)
	assert.Error(t, err)
}
