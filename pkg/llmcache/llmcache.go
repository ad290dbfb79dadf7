// Package llmcache caches raw LLM responses keyed by a hash of the prompt.
//
// This is a second-level cache independent of the wordbank store: it avoids
// repeat LLM calls for identical prompts across builds. Entries expire after
// a configured TTL. When no backing store is reachable the cache silently
// degrades to no caching; a cold cache is a cost problem, not a correctness
// problem.
package llmcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"
)

// Stats describes the state of a cache backend.
type Stats struct {
	Enabled   bool
	Connected bool
	Backend   string
	Entries   int
	Prefix    string
}

// Cache stores raw LLM responses keyed by prompt.
type Cache interface {
	// Get returns the cached response for a prompt, if present and fresh.
	Get(ctx context.Context, prompt string) (string, bool)
	// Set stores a response. Failures are logged, never returned: caching is
	// best effort.
	Set(ctx context.Context, prompt, response string)
	// Clear removes all entries under this cache's prefix and returns how
	// many were removed.
	Clear(ctx context.Context) (int, error)
	// Stats reports backend state for the CLI.
	Stats(ctx context.Context) Stats
}

// Options configures cache construction.
type Options struct {
	Enabled bool
	// TTLSeconds is the entry time-to-live. Zero means no expiry.
	TTLSeconds int
	// Redis backing store location.
	Host string
	Port int
	// SQLitePath, when set, is used as a local fallback if Redis is
	// unreachable.
	SQLitePath string
	// KeyPrefix namespaces entries so prompt-format changes can bump a
	// version without clearing unrelated data.
	KeyPrefix string
}

// key builds the storage key for a prompt: <prefix>:<sha256(prompt)>.
func key(prefix, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Disabled is a Cache that never hits. It is the degraded mode used when
// caching is turned off or no backing store is reachable.
type Disabled struct{}

func (Disabled) Get(context.Context, string) (string, bool) { return "", false }
func (Disabled) Set(context.Context, string, string)        {}
func (Disabled) Clear(context.Context) (int, error)         { return 0, nil }
func (Disabled) Stats(context.Context) Stats                { return Stats{} }

// New builds the best available cache for the given options: Redis when
// reachable, the SQLite fallback when configured, otherwise Disabled.
func New(ctx context.Context, opts Options, logger zerolog.Logger) Cache {
	if !opts.Enabled {
		logger.Debug().Msg("llm cache disabled")
		return Disabled{}
	}
	if c, err := NewRedis(ctx, opts, logger); err == nil {
		return c
	} else {
		logger.Warn().Err(err).Msg("llm cache: redis unreachable")
	}
	if opts.SQLitePath != "" {
		if c, err := NewSQLite(opts, logger); err == nil {
			return c
		} else {
			logger.Warn().Err(err).Msg("llm cache: sqlite fallback unavailable")
		}
	}
	logger.Warn().Msg("llm cache: running without cache")
	return Disabled{}
}
