package llmcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS llm_cache (
	key TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_llm_cache_expires ON llm_cache (expires_at)
`

// SQLite is the local fallback cache backend for hosts without Redis.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewSQLite opens (creating if needed) the cache database at opts.SQLitePath
// and applies the embedded migrations.
func NewSQLite(opts Options, logger zerolog.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("llmcache: mkdir for %s: %w", opts.SQLitePath, err)
	}
	db, err := sql.Open("sqlite3", opts.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("llmcache: open %s: %w", opts.SQLitePath, err)
	}
	for _, stmt := range strings.Split(migrationsSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("llmcache: migrate: %w", err)
		}
	}
	logger.Info().Str("path", opts.SQLitePath).Msg("llm cache: using sqlite fallback")
	return &SQLite{
		db:     db,
		ttl:    time.Duration(opts.TTLSeconds) * time.Second,
		prefix: opts.KeyPrefix,
		logger: logger,
	}, nil
}

func (c *SQLite) Get(ctx context.Context, prompt string) (string, bool) {
	var response string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT response, expires_at FROM llm_cache WHERE key = ?`,
		key(c.prefix, prompt),
	).Scan(&response, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("llm cache: sqlite get failed")
		return "", false
	}
	if expiresAt > 0 && time.Now().Unix() >= expiresAt {
		// Expired entries are reaped lazily on read.
		if _, err := c.db.ExecContext(ctx, `DELETE FROM llm_cache WHERE key = ?`, key(c.prefix, prompt)); err != nil {
			c.logger.Warn().Err(err).Msg("llm cache: sqlite expiry delete failed")
		}
		return "", false
	}
	return response, true
}

func (c *SQLite) Set(ctx context.Context, prompt, response string) {
	var expiresAt int64
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl).Unix()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO llm_cache (key, response, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   response = excluded.response,
		   expires_at = excluded.expires_at`,
		key(c.prefix, prompt), response, expiresAt,
	)
	if err != nil {
		c.logger.Warn().Err(err).Msg("llm cache: sqlite set failed")
	}
}

func (c *SQLite) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM llm_cache WHERE key LIKE ?`, c.prefix+":%")
	if err != nil {
		return 0, fmt.Errorf("llmcache: clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *SQLite) Stats(ctx context.Context) Stats {
	stats := Stats{Enabled: true, Backend: "sqlite", Prefix: c.prefix}
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM llm_cache WHERE key LIKE ?`, c.prefix+":%",
	).Scan(&stats.Entries)
	stats.Connected = err == nil
	return stats
}

// Close releases the database handle.
func (c *SQLite) Close() error { return c.db.Close() }
