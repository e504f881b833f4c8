package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task service and the chat
// client.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	DatabaseURL string

	ModelBaseURL string
	ModelName    string
	ModelTimeout time.Duration

	ServerBaseURL string

	WindowMaxTurns  int
	SummaryKeywords []string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "taskpilot"),
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		ModelBaseURL:             envOrDefault("MODEL_BASE_URL", "http://localhost:11434"),
		ModelName:                envOrDefault("MODEL_NAME", "llama3.2"),
		ServerBaseURL:            envOrDefault("SERVER_BASE_URL", "http://localhost:8080"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		ModelTimeout:             60 * time.Second,
		WindowMaxTurns:           20,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelTimeout, err = durationFromEnv("MODEL_TIMEOUT", cfg.ModelTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WindowMaxTurns, err = intFromEnv("WINDOW_MAX_TURNS", cfg.WindowMaxTurns)
	if err != nil {
		return Config{}, err
	}

	if raw := trimmedEnv("WINDOW_SUMMARY_KEYWORDS"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				cfg.SummaryKeywords = append(cfg.SummaryKeywords, k)
			}
		}
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.WindowMaxTurns <= 0 {
		return Config{}, fmt.Errorf("WINDOW_MAX_TURNS must be positive")
	}
	if cfg.ModelTimeout <= 0 {
		return Config{}, fmt.Errorf("MODEL_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
