package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetAddr())
	assert.Equal(t, devSecret, cfg.GetJWTSecret())
	assert.Equal(t, devSecret, cfg.GetSessionSecret())
	assert.Equal(t, "huddle", cfg.GetJWTIssuer())
	assert.Equal(t, 24*time.Hour, cfg.GetTokenTTL())
	assert.Equal(t, bcrypt.DefaultCost, cfg.GetBcryptCost())
	assert.Equal(t, 5*time.Second, cfg.GetDeliveryTimeout())
	assert.Equal(t, 256, cfg.GetSendBuffer())
	assert.Equal(t, 1024, cfg.GetRouterQueue())
	assert.Equal(t, 64, cfg.GetFanoutLimit())
	assert.Empty(t, cfg.GetAllowedOrigins())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeout())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"HUDDLE_ADDR":             "127.0.0.1:9000",
		"HUDDLE_JWT_SECRET":       "0123456789abcdef0123",
		"HUDDLE_SESSION_SECRET":   "fedcba9876543210fedc",
		"HUDDLE_TOKEN_TTL":        "15m",
		"HUDDLE_BCRYPT_COST":      "4",
		"HUDDLE_ALLOWED_ORIGINS":  "example.com, *.example.org ,",
		"HUDDLE_DELIVERY_TIMEOUT": "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "0123456789abcdef0123", cfg.JWTSecret)
	assert.Equal(t, "fedcba9876543210fedc", cfg.SessionSecret)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.DeliveryTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "short secret", values: map[string]string{"HUDDLE_JWT_SECRET": "short"}},
		{name: "bad duration", values: map[string]string{"HUDDLE_TOKEN_TTL": "soon"}},
		{name: "bad int", values: map[string]string{"HUDDLE_SEND_BUFFER": "many"}},
		{name: "zero queue", values: map[string]string{"HUDDLE_ROUTER_QUEUE": "0"}},
		{name: "cost out of range", values: map[string]string{"HUDDLE_BCRYPT_COST": "40"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.values))
			assert.Error(t, err)
		})
	}
}
