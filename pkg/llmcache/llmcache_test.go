package llmcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, ttlSeconds int) *SQLite {
	t.Helper()
	c, err := NewSQLite(Options{
		Enabled:    true,
		TTLSeconds: ttlSeconds,
		SQLitePath: filepath.Join(t.TempDir(), "cache.db"),
		KeyPrefix:  "v1",
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyIsPrefixedHash(t *testing.T) {
	a := key("v1", "prompt")
	b := key("v1", "prompt")
	c := key("v2", "prompt")
	d := key("v1", "other prompt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "v1:")
	// sha256 hex digest after the prefix
	assert.Len(t, a, len("v1:")+64)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestSQLite(t, 0)

	_, ok := c.Get(ctx, "生成プロンプト")
	assert.False(t, ok)

	c.Set(ctx, "生成プロンプト", `{"description":"..."}`)
	got, ok := c.Get(ctx, "生成プロンプト")
	require.True(t, ok)
	assert.Equal(t, `{"description":"..."}`, got)

	// Overwrite replaces the stored response.
	c.Set(ctx, "生成プロンプト", "updated")
	got, ok = c.Get(ctx, "生成プロンプト")
	require.True(t, ok)
	assert.Equal(t, "updated", got)
}

func TestSQLiteTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestSQLite(t, 1)

	c.Set(ctx, "prompt", "response")
	_, ok := c.Get(ctx, "prompt")
	require.True(t, ok)

	// Force the entry into the past instead of sleeping.
	_, err := c.db.Exec(`UPDATE llm_cache SET expires_at = ?`, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	_, ok = c.Get(ctx, "prompt")
	assert.False(t, ok)

	stats := c.Stats(ctx)
	assert.True(t, stats.Connected)
	assert.Equal(t, 0, stats.Entries)
}

func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	c := newTestSQLite(t, 0)

	c.Set(ctx, "one", "1")
	c.Set(ctx, "two", "2")

	removed, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get(ctx, "one")
	assert.False(t, ok)
}

func TestDisabledNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = Disabled{}

	c.Set(ctx, "prompt", "response")
	_, ok := c.Get(ctx, "prompt")
	assert.False(t, ok)

	removed, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.False(t, c.Stats(ctx).Enabled)
}

func TestNewDisabledByOptions(t *testing.T) {
	c := New(context.Background(), Options{Enabled: false}, zerolog.Nop())
	_, ok := c.(Disabled)
	assert.True(t, ok)
}

func TestNewFallsBackToSQLite(t *testing.T) {
	// Port 1 is never a live Redis; construction must degrade to sqlite.
	c := New(context.Background(), Options{
		Enabled:    true,
		Host:       "127.0.0.1",
		Port:       1,
		SQLitePath: filepath.Join(t.TempDir(), "cache.db"),
		KeyPrefix:  "v1",
	}, zerolog.Nop())
	_, ok := c.(*SQLite)
	assert.True(t, ok)
}
