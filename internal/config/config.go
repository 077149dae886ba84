package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the speech processing service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	LogLevel  string
	LogFormat string

	FlushInterval  time.Duration
	MinFlushBytes  int
	UploadMaxBytes int64
	WSReadTimeout  time.Duration

	WorkerCount int
	JobTimeout  time.Duration

	DatabaseURL string

	KafkaBrokers    []string
	KafkaEventTopic string
	KafkaJobTopic   string
	KafkaGroup      string

	TranscribeProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	WhisperModel       string
	GoogleLanguage     string
	TranscribeTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "speech"),
		AllowAnyOrigin:     false,
		LogLevel:           envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("APP_LOG_FORMAT", "json"),
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		KafkaBrokers:       listFromEnv("KAFKA_BROKERS"),
		KafkaEventTopic:    envOrDefault("KAFKA_EVENT_TOPIC", "speech.session-events"),
		KafkaJobTopic:      envOrDefault("KAFKA_JOB_TOPIC", "speech.transcription-jobs"),
		KafkaGroup:         envOrDefault("KAFKA_JOB_GROUP", "transcription-workers"),
		TranscribeProvider: envOrDefault("TRANSCRIBE_PROVIDER", "auto"),
		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:      envOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		WhisperModel:       envOrDefault("WHISPER_MODEL", "whisper-1"),
		GoogleLanguage:     envOrDefault("GOOGLE_SPEECH_LANGUAGE", "en-US"),
		ShutdownTimeout:    15 * time.Second,
		FlushInterval:      time.Second,
		MinFlushBytes:      32000,
		UploadMaxBytes:     32 << 20,
		WSReadTimeout:      120 * time.Second,
		WorkerCount:        4,
		JobTimeout:         45 * time.Second,
		TranscribeTimeout:  30 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FlushInterval, err = durationFromEnv("APP_FLUSH_INTERVAL", cfg.FlushInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.JobTimeout, err = durationFromEnv("APP_JOB_TIMEOUT", cfg.JobTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WSReadTimeout, err = durationFromEnv("APP_WS_READ_TIMEOUT", cfg.WSReadTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MinFlushBytes, err = intFromEnv("APP_MIN_FLUSH_BYTES", cfg.MinFlushBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.WorkerCount, err = intFromEnv("APP_WORKER_COUNT", cfg.WorkerCount)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.FlushInterval < 100*time.Millisecond {
		return Config{}, fmt.Errorf("APP_FLUSH_INTERVAL must be at least 100ms")
	}
	if cfg.MinFlushBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MIN_FLUSH_BYTES must be positive")
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, fmt.Errorf("APP_WORKER_COUNT must be positive")
	}
	if cfg.JobTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_JOB_TIMEOUT must be positive")
	}
	if cfg.WSReadTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_WS_READ_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the cross-process backends are configured.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
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

func listFromEnv(key string) []string {
	raw := trimmedEnv(key)
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
	return out
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

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
