package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "https://api.mistral.ai", cfg.LLM.BaseURL)
	assert.Equal(t, "mistral-large-latest", cfg.LLM.Model)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 2500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.False(t, cfg.LLM.StubEnabled)
	assert.Equal(t, "lenient", cfg.LLM.FallbackPolicy)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "mongo", cfg.Database.Driver)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("LLM_STUB_ENABLED", "true")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("LLM_FALLBACK_POLICY", "strict")
	t.Setenv("RATELIMIT_WINDOW", "30s")
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.LLM.StubEnabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.LLM.Timeout())
	assert.Equal(t, "strict", cfg.LLM.FallbackPolicy)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.Database.Driver)
}
