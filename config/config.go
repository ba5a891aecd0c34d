// Package config loads all engine configuration from environment variables.
// Load returns a fully populated value; nothing mutates it afterwards, so a
// Config can be shared freely across goroutines.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"spotenginev1/internal/model"
)

// Config holds all application configuration.
type Config struct {
	// Venue credentials
	APIKey     string
	ClientID   string
	Password   string
	TOTPSecret string

	// Venue endpoints
	BaseURL string
	WSURL   string

	// Market
	Market     string // e.g. "SOL-USDC"
	QuoteAsset string // capital currency, e.g. "USDC"

	// Decision loop
	PollInterval time.Duration
	FetchLimit   int    // base candles per fetch
	Timeframes   string // comma-separated, e.g. "5m,15m,1h"
	PaperMode    bool
	SlippageBps  float64 // paper executor slippage

	// Risk limits
	StartingCapital float64
	MaxPositions    int
	PositionSizePct float64
	TakeProfitPct   float64
	StopLossPct     float64
	TrailingPct     float64
	MaxHold         time.Duration
	MaxDrawdownPct  float64
	MinConfidence   float64
	ExitConfidence  float64
	DriftWarnPct    float64

	// Infrastructure
	RedisAddr     string // empty disables the live publisher
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	CacheTTL      time.Duration

	// Notifications (empty disables a channel)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// Venue credentials are only required outside paper mode.
func Load() *Config {
	paper := getEnvBool("PAPER_MODE", true)

	cfg := &Config{
		BaseURL: getEnv("VENUE_BASE_URL", ""),
		WSURL:   getEnv("VENUE_WS_URL", ""),

		Market:     getEnv("MARKET", "SOL-USDC"),
		QuoteAsset: getEnv("QUOTE_ASSET", "USDC"),

		PollInterval: getEnvDuration("POLL_INTERVAL", 30*time.Second),
		FetchLimit:   getEnvInt("FETCH_LIMIT", 500),
		Timeframes:   getEnv("TIMEFRAMES", "5m,15m,1h"),
		PaperMode:    paper,
		SlippageBps:  getEnvFloat("SLIPPAGE_BPS", 5),

		StartingCapital: getEnvFloat("STARTING_CAPITAL", 1000),
		MaxPositions:    getEnvInt("MAX_POSITIONS", 1),
		PositionSizePct: getEnvFloat("POSITION_SIZE_PCT", 25),
		TakeProfitPct:   getEnvFloat("TAKE_PROFIT_PCT", 25),
		StopLossPct:     getEnvFloat("STOP_LOSS_PCT", 10),
		TrailingPct:     getEnvFloat("TRAILING_PCT", 5),
		MaxHold:         getEnvDuration("MAX_HOLD", 4*time.Hour),
		MaxDrawdownPct:  getEnvFloat("MAX_DRAWDOWN_PCT", 20),
		MinConfidence:   getEnvFloat("MIN_CONFIDENCE", 60),
		ExitConfidence:  getEnvFloat("EXIT_CONFIDENCE", 65),
		DriftWarnPct:    getEnvFloat("DRIFT_WARN_PCT", 5),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/spotengine.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Second),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}

	if !paper {
		cfg.APIKey = mustEnv("VENUE_API_KEY")
		cfg.ClientID = mustEnv("VENUE_CLIENT_ID")
		cfg.Password = mustEnv("VENUE_PASSWORD")
		cfg.TOTPSecret = mustEnv("VENUE_TOTP_SECRET")
	} else {
		cfg.APIKey = getEnv("VENUE_API_KEY", "")
		cfg.ClientID = getEnv("VENUE_CLIENT_ID", "")
		cfg.Password = getEnv("VENUE_PASSWORD", "")
		cfg.TOTPSecret = getEnv("VENUE_TOTP_SECRET", "")
	}

	return cfg
}

// ParseTimeframes parses the Timeframes string into decision timeframes.
// Invalid entries are skipped with a log line.
func (c *Config) ParseTimeframes() []model.Timeframe {
	parts := strings.Split(c.Timeframes, ",")
	tfs := make([]model.Timeframe, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseDuration(p)
		if err != nil || d <= 0 {
			log.Printf("[config] skipping invalid timeframe: %q", p)
			continue
		}
		tfs = append(tfs, model.Timeframe(d))
	}
	return tfs
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
