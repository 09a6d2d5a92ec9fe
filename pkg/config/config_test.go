package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LLM_PROVIDER", "Local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "local", cfg.LLMProvider)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 10, cfg.ContextWindow)
	assert.Equal(t, "https://api.line.me", cfg.LineAPIBase)
	assert.False(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{AppEnv: "development", LLMProvider: "openai", DBDriver: "sqlite", LLMTimeout: time.Second}
	}

	t.Run("unknown env", func(t *testing.T) {
		c := base()
		c.AppEnv = "prod"
		assert.Error(t, c.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		c := base()
		c.LLMProvider = "claude"
		assert.Error(t, c.Validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		c := base()
		c.AppEnv = "production"
		assert.Error(t, c.Validate())

		c.LineChannelSecret = "s"
		c.LineChannelAccessToken = "t"
		assert.Error(t, c.Validate())

		c.JWTSecret = "j"
		assert.NoError(t, c.Validate())
	})

	t.Run("negative window", func(t *testing.T) {
		c := base()
		c.ContextWindow = -1
		assert.Error(t, c.Validate())
	})
}
