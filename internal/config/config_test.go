package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StorageSQLite, cfg.DatabaseType)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.True(t, cfg.SQLBacked())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "BBOLT")
	t.Setenv("BOLT_PATH", "/tmp/test.bolt")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, StorageBolt, cfg.DatabaseType)
	assert.Equal(t, "/tmp/test.bolt", cfg.BoltPath)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.SQLBacked())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"DATABASE_TYPE": "oracle"}},
		{name: "postgres without url", env: map[string]string{"DATABASE_TYPE": "postgres"}},
		{name: "zero rate", env: map[string]string{"RATE_LIMIT_RPS": "0"}},
		{name: "bad duration", env: map[string]string{"TOKEN_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
