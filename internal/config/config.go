// Package config loads the desk's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fortuna/scoredesk/internal/notify"
)

// Config holds every runtime setting of scoredesk and scorectl.
type Config struct {
	// Match-score backend
	ScoreAPIBase      string
	APITimeout        time.Duration
	RequestsPerMinute int

	// Sessions
	PollInterval       time.Duration
	SessionIdleTimeout time.Duration

	// Servers
	RESTPort         string
	WSPort           string
	CORSAllowOrigins []string

	// Optional infrastructure; empty disables the component
	RedisURL    string
	SnapshotTTL time.Duration
	JournalDSN  string

	// Discord crew channel
	DiscordWebhookID     string
	DiscordWebhookToken  string
	DiscordMinLevel      notify.Level
	DiscordErrorCooldown time.Duration
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ScoreAPIBase:      strings.TrimRight(getEnv("SCORE_API_BASE", "http://localhost:2000/api/v2"), "/"),
		APITimeout:        envDuration("API_TIMEOUT", 10*time.Second),
		RequestsPerMinute: envInt("API_REQUESTS_PER_MINUTE", 600),

		PollInterval:       envDuration("POLL_INTERVAL", 5*time.Second),
		SessionIdleTimeout: envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		RESTPort:         getEnv("REST_PORT", "8080"),
		WSPort:           getEnv("WS_PORT", "8081"),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", nil),

		RedisURL:    getEnv("REDIS_URL", ""),
		SnapshotTTL: envDuration("SNAPSHOT_TTL", 10*time.Minute),
		JournalDSN:  getEnv("JOURNAL_DSN", ""),

		DiscordWebhookID:     getEnv("DISCORD_WEBHOOK_ID", ""),
		DiscordWebhookToken:  getEnv("DISCORD_WEBHOOK_TOKEN", ""),
		DiscordErrorCooldown: envDuration("DISCORD_ERROR_COOLDOWN", notify.DefaultErrorCooldown),
	}

	level, err := notify.ParseLevel(getEnv("DISCORD_MIN_LEVEL", string(notify.LevelSuccess)))
	if err != nil {
		return nil, fmt.Errorf("DISCORD_MIN_LEVEL: %w", err)
	}
	cfg.DiscordMinLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the desk cannot run with.
func (c *Config) Validate() error {
	if c.ScoreAPIBase == "" {
		return fmt.Errorf("SCORE_API_BASE must be set")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("API_REQUESTS_PER_MINUTE must be positive, got %d", c.RequestsPerMinute)
	}
	if (c.DiscordWebhookID == "") != (c.DiscordWebhookToken == "") {
		return fmt.Errorf("DISCORD_WEBHOOK_ID and DISCORD_WEBHOOK_TOKEN must be set together")
	}
	return nil
}

// DiscordEnabled reports whether crew notifications go to Discord.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordWebhookID != "" && c.DiscordWebhookToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("5s") or bare seconds ("5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
