package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr               string
	LogLevel               string
	LogFormat              string
	TorrentDataDir         string
	TorrentListenPort      int // 0 = client default
	AlertInterval          time.Duration
	MongoURI               string // empty disables the lifecycle journal
	MongoDatabase          string
	MongoJournalCollection string
	CORSAllowedOrigins     []string
	RateLimitRPS           int64 // 0 = no rate limit
	RateLimitBurst         int
	RequestTimeout         time.Duration
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:              strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TorrentDataDir:         getEnv("TORRENT_DATA_DIR", "data"),
		TorrentListenPort:      int(getEnvInt64("TORRENT_LISTEN_PORT", 0)),
		AlertInterval:          time.Duration(getEnvPositive("ALERT_INTERVAL_MS", 1000)) * time.Millisecond,
		MongoURI:               strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:          getEnv("MONGO_DB", "torrentsession"),
		MongoJournalCollection: getEnv("MONGO_JOURNAL_COLLECTION", "transfer_events"),
		CORSAllowedOrigins:     parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:           getEnvInt64("RATE_LIMIT_RPS", 50),
		RateLimitBurst:         int(getEnvInt64("RATE_LIMIT_BURST", 100)),
		RequestTimeout:         time.Duration(getEnvPositive("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// JournalEnabled reports whether lifecycle events should be written to
// MongoDB.
func (c Config) JournalEnabled() bool {
	return c.MongoURI != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvPositive is getEnvInt64 for settings where zero makes no sense.
func getEnvPositive(key string, fallback int64) int64 {
	if v := getEnvInt64(key, fallback); v > 0 {
		return v
	}
	return fallback
}

func parseCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
