package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/jwtx"
)

type Config struct {
	Issuer string // Issuer claim for tokens

	AccessTokenSecret  string // Required: HMAC secret for access tokens (min 32 bytes)
	RefreshTokenSecret string // Required: HMAC secret for refresh tokens (min 32 bytes, distinct)

	AccessTTL    time.Duration // Access token lifetime (default: 30m)
	RefreshTTL   time.Duration // Refresh token / session lifetime (default: 168h)
	CodeTTL      time.Duration // Verification and reset code lifetime (default: 15m)
	SessionLimit int           // Max concurrent sessions per user (default: 4)

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)

	ResendAPIKey string // Optional: Resend API key; mail is logged when empty
	MailFrom     string // Sender address for outbound mail

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired session sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:             getEnvOrDefault("AUTH_ISSUER", "tradehall-auth"),
		AccessTokenSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshTokenSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTTL:    getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:   getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		CodeTTL:      getEnvDurationOrDefault("AUTH_CODE_TTL", service.DefaultCodeTTL),
		SessionLimit: getEnvIntOrDefault("AUTH_SESSION_LIMIT", service.DefaultSessionLimit),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     getEnvOrDefault("MAIL_FROM", "TradeHall <no-reply@tradehall.local>"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects configurations that would silently weaken token security.
func (c Config) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("AUTH_ACCESS_SECRET must be set and at least 32 bytes")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("AUTH_REFRESH_SECRET must be set and at least 32 bytes")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Duration strings first (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
