package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigRequiresSecret(t *testing.T) {
	_, err := loadConfig(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTHCORE_JWT_SECRET")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(map[string]string{"AUTHCORE_JWT_SECRET": testSecret})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "authcore", cfg.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.TrustProxy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.OTelEndpoint)
	assert.Equal(t, 30*time.Second, cfg.OTelMetricsInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(map[string]string{
		"AUTHCORE_JWT_SECRET":             testSecret,
		"AUTHCORE_HTTP_ADDR":              "127.0.0.1:9000",
		"AUTHCORE_SESSION_TTL":            "2h",
		"AUTHCORE_TRUST_PROXY":            "true",
		"AUTHCORE_REQUIRE_VERIFIED_EMAIL": "true",
		"AUTHCORE_DATABASE_URL":           "postgres://localhost/authcore",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.TrustProxy)
	assert.True(t, cfg.RequireVerifiedEmail)
	assert.Equal(t, "postgres://localhost/authcore", cfg.DatabaseURL)
}

func TestEngineConfig(t *testing.T) {
	cfg, err := loadConfig(map[string]string{
		"AUTHCORE_JWT_SECRET":             testSecret,
		"AUTHCORE_JWT_AUDIENCE":           "web",
		"AUTHCORE_REQUIRE_VERIFIED_EMAIL": "true",
	})
	require.NoError(t, err)

	ec, err := cfg.engineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte(testSecret), ec.JWT.Secret)
	assert.Equal(t, "web", ec.JWT.Audience)
	assert.True(t, ec.Account.RequireVerifiedEmail)
}

func TestEngineConfigRejectsShortSecret(t *testing.T) {
	cfg, err := loadConfig(map[string]string{"AUTHCORE_JWT_SECRET": "short"})
	require.NoError(t, err)

	_, err = cfg.engineConfig()
	assert.Error(t, err)
}
