package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderConfig selects and configures the speech-to-text backend.
type ProviderConfig struct {
	// Provider is one of auto|whisper|google|mock.
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string

	GoogleLanguage string

	Timeout time.Duration
}

// Select builds the configured provider. In auto mode it prefers
// whisper when an API key is set, then google, then mock.
func Select(ctx context.Context, cfg ProviderConfig) (Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mode == "" {
		mode = "auto"
	}

	whisper := func() Client {
		return NewWhisperClient(WhisperConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.WhisperModel,
			Timeout: cfg.Timeout,
		})
	}

	switch mode {
	case "whisper":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, "", fmt.Errorf("TRANSCRIBE_PROVIDER=whisper but OPENAI_API_KEY is not set")
		}
		return whisper(), "whisper", nil
	case "google":
		c, err := NewGoogleClient(ctx, cfg.GoogleLanguage)
		if err != nil {
			return nil, "", err
		}
		return c, "google", nil
	case "mock":
		return NewMockClient(), "mock", nil
	case "auto":
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			return whisper(), "whisper", nil
		}
		if c, err := NewGoogleClient(ctx, cfg.GoogleLanguage); err == nil {
			return c, "google", nil
		}
		return NewMockClient(), "mock", nil
	default:
		return nil, "", fmt.Errorf("invalid TRANSCRIBE_PROVIDER: %q (expected auto|whisper|google|mock)", cfg.Provider)
	}
}
