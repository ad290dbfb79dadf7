package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "dall-e-3", cfg.ImageModel)
	assert.Equal(t, 15, cfg.BatchSize)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 6379, cfg.Cache.Port)
	assert.Equal(t, "kotobank", cfg.Cache.KeyPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KOTOBANK_BATCH_SIZE", "3")
	t.Setenv("KOTOBANK_CACHE_ENABLED", "false")
	t.Setenv("KOTOBANK_CACHE_HOST", "cache.internal")
	t.Setenv("KOTOBANK_CHAT_MODEL", "gpt-4o-mini")

	cfg := Load()
	assert.Equal(t, 3, cfg.BatchSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache.internal", cfg.Cache.Host)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KOTOBANK_BATCH_SIZE", "lots")
	t.Setenv("KOTOBANK_CACHE_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 15, cfg.BatchSize)
	assert.True(t, cfg.Cache.Enabled)
}
