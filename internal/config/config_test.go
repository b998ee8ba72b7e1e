package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-at-least-16-chars!!")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "./profiles.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.AuthRateLimitRPM)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.GoogleConfigured())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("AUTH_RATE_LIMIT_RPM", "7")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "cid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "csecret")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, 7, cfg.AuthRateLimitRPM)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.GoogleConfigured())
}

func TestLoad_BadNumericFallsBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("AUTH_RATE_LIMIT_RPM", "not-a-number")
	t.Setenv("SERVER_READ_TIMEOUT", "garbage")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, 30, cfg.AuthRateLimitRPM)
	assert.Equal(t, 15*time.Second, cfg.ServerReadTimeout)
}
