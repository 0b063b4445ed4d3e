package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
	PublicBaseURL  string

	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioWhatsAppNumber      string
	TwilioPhoneNumber         string
	TwilioMessagingServiceSID string
	ProviderRetryMax          int

	DispatchSchedule string
	SyncSchedule     string
	SyncDelay        time.Duration
	SyncBatchSize    int
}

// Load reads the configuration from the environment. Call godotenv first to
// pick up a local .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DB_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),

		TwilioAccountSID:          os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:           os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber:      os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioPhoneNumber:         os.Getenv("TWILIO_PHONE_NUMBER"),
		TwilioMessagingServiceSID: os.Getenv("TWILIO_MESSAGING_SERVICE_SID"),

		DispatchSchedule: getEnv("DISPATCH_SCHEDULE", "@every 1m"),
		SyncSchedule:     getEnv("SYNC_SCHEDULE", "@every 10m"),
	}

	var err error
	if cfg.ProviderRetryMax, err = getInt("PROVIDER_RETRY_MAX", 3); err != nil {
		return nil, err
	}
	if cfg.SyncBatchSize, err = getInt("SYNC_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.SyncDelay, err = time.ParseDuration(getEnv("SYNC_DELAY", "1s")); err != nil {
		return nil, errors.Wrap(err, "SYNC_DELAY")
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be an integer", key)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
