package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Calendar provider selection.
const (
	CalendarProviderMemory = "memory"
	CalendarProviderGoogle = "google"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	GeminiAPIKey  string
	GeminiModelID string

	CalendarProvider   string
	GoogleToken        string
	GoogleRefreshToken string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCalendarID   string
	ClinicTimezone     string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		CalendarProvider:   strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_PROVIDER", CalendarProviderMemory))),
		GoogleToken:        getEnv("GOOGLE_TOKEN", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),
		ClinicTimezone:     getEnv("CLINIC_TIMEZONE", "America/Sao_Paulo"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// MissingError reports every required setting that is absent, so operators
// see the full list in one pass instead of one failure per restart.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("config: missing required settings: %s", strings.Join(e.Names, ", "))
}

// Validate checks that every setting the enabled features need is present.
// The Google settings are only required when the calendar provider is google.
func (c *Config) Validate() error {
	var missing []string

	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if c.CalendarProvider == CalendarProviderGoogle {
		required := []struct {
			name  string
			value string
		}{
			{"GOOGLE_TOKEN", c.GoogleToken},
			{"GOOGLE_REFRESH_TOKEN", c.GoogleRefreshToken},
			{"GOOGLE_CLIENT_ID", c.GoogleClientID},
			{"GOOGLE_CLIENT_SECRET", c.GoogleClientSecret},
		}
		for _, r := range required {
			if r.value == "" {
				missing = append(missing, r.name)
			}
		}
	}

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
