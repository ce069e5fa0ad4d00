package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepwise/internal/config"
)

func TestConfigValidation(t *testing.T) {
	t.Run("valid_default_config", func(t *testing.T) {
		assert.NoError(t, config.NewDefaultConfig().Validate())
	})

	tests := []struct {
		name      string
		configMod func(*config.Config)
		want      error
	}{
		{"port_zero", func(c *config.Config) { c.HTTPPort = 0 }, config.ErrInvalidHTTPPort},
		{"port_too_high", func(c *config.Config) { c.HTTPPort = 70000 }, config.ErrInvalidHTTPPort},
		{"zero_max_errors", func(c *config.Config) { c.MaxErrors = 0 }, config.ErrInvalidMaxErrors},
		{"zero_max_iterations", func(c *config.Config) { c.MaxIterations = 0 }, config.ErrInvalidMaxIterations},
		{"zero_input_size", func(c *config.Config) { c.MaxInputSize = 0 }, config.ErrInvalidMaxInputSize},
		{"negative_ttl", func(c *config.Config) { c.SessionTTL = -time.Second }, config.ErrInvalidSessionTTL},
		{"unknown_store", func(c *config.Config) { c.Store = "tape" }, config.ErrInvalidStore},
		{"file_without_path", func(c *config.Config) { c.Store, c.StorePath = config.StoreFile, "" }, config.ErrMissingStorePath},
		{"unknown_oracle", func(c *config.Config) { c.Oracle = "crystal-ball" }, config.ErrInvalidOracle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}

	t.Run("bad_log_level", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		cfg.LogLevel = "shout"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STEPWISE_MAX_ERRORS", "5")
	t.Setenv("STEPWISE_MAX_ITERATIONS", "20")
	t.Setenv("STEPWISE_STORE", "redis")
	t.Setenv("STEPWISE_REDIS_ADDR", "redis:6379")
	t.Setenv("STEPWISE_REDIS_DB", "2")
	t.Setenv("STEPWISE_SESSION_TTL", "90m")
	t.Setenv("STEPWISE_ORACLE", "openai")
	t.Setenv("STEPWISE_MODEL", "gpt-4o-mini")
	t.Setenv("STEPWISE_HTTP_PORT", "9090")

	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.MaxErrors)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, config.StoreRedis, cfg.Store)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, config.OracleOpenAI, cfg.Oracle)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 9090, cfg.HTTPPort)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := map[string]string{
		"STEPWISE_MAX_ERRORS":  "many",
		"STEPWISE_HTTP_PORT":   "99999",
		"STEPWISE_SESSION_TTL": "forever",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			assert.Error(t, config.NewDefaultConfig().LoadFromEnv())
		})
	}
}
