// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"strconv"

	"kotobank/pkg/llmcache"
)

// Config is everything the CLI needs that is not a per-invocation flag.
type Config struct {
	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string
	ImageModel    string
	SpeechModel   string
	// DefaultVoice narrates single-voice TTS sections with no voice attribute.
	DefaultVoice string
	BatchSize    int
	Cache        llmcache.Options
}

// Load reads the environment. Missing variables fall back to defaults;
// validation of required values (like the API key) happens where they are
// first used, so cache-only invocations work without credentials.
func Load() Config {
	return Config{
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		ChatModel:     getEnv("KOTOBANK_CHAT_MODEL", "gpt-4o"),
		ImageModel:    getEnv("KOTOBANK_IMAGE_MODEL", "dall-e-3"),
		SpeechModel:   getEnv("KOTOBANK_SPEECH_MODEL", "tts-1"),
		DefaultVoice:  getEnv("KOTOBANK_DEFAULT_VOICE", "alloy"),
		BatchSize:     getEnvAsInt("KOTOBANK_BATCH_SIZE", 15),
		Cache: llmcache.Options{
			Enabled:    getEnvAsBool("KOTOBANK_CACHE_ENABLED", true),
			TTLSeconds: getEnvAsInt("KOTOBANK_CACHE_TTL", 60*60*24*30),
			Host:       getEnv("KOTOBANK_CACHE_HOST", "localhost"),
			Port:       getEnvAsInt("KOTOBANK_CACHE_PORT", 6379),
			SQLitePath: getEnv("KOTOBANK_CACHE_SQLITE", ""),
			KeyPrefix:  getEnv("KOTOBANK_CACHE_PREFIX", "kotobank"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
