package llmcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is the primary cache backend.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedis connects to the configured Redis instance and verifies the
// connection with a short ping before accepting use.
func NewRedis(ctx context.Context, opts Options, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("llmcache: connect redis %s:%d: %w", opts.Host, opts.Port, err)
	}

	logger.Info().Str("addr", fmt.Sprintf("%s:%d", opts.Host, opts.Port)).Msg("llm cache: connected to redis")
	return &Redis{
		client: client,
		ttl:    time.Duration(opts.TTLSeconds) * time.Second,
		prefix: opts.KeyPrefix,
		logger: logger,
	}, nil
}

func (c *Redis) Get(ctx context.Context, prompt string) (string, bool) {
	value, err := c.client.Get(ctx, key(c.prefix, prompt)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("llm cache: redis get failed")
		return "", false
	}
	return value, true
}

func (c *Redis) Set(ctx context.Context, prompt, response string) {
	if err := c.client.Set(ctx, key(c.prefix, prompt), response, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("llm cache: redis set failed")
	}
}

func (c *Redis) Clear(ctx context.Context) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("llmcache: delete %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("llmcache: scan: %w", err)
	}
	return removed, nil
}

func (c *Redis) Stats(ctx context.Context) Stats {
	stats := Stats{Enabled: true, Backend: "redis", Prefix: c.prefix}
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		stats.Entries++
	}
	if iter.Err() == nil {
		stats.Connected = true
	}
	return stats
}

// Close releases the client connection.
func (c *Redis) Close() error { return c.client.Close() }
