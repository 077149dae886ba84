package transcribe

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/OrFisher/real-time-speech-processor/internal/audio"
)

// GoogleClient transcribes through Google Cloud Speech-to-Text using the
// synchronous Recognize call. Requires GOOGLE_APPLICATION_CREDENTIALS.
type GoogleClient struct {
	client   *speech.Client
	language string
}

func NewGoogleClient(ctx context.Context, language string) (*GoogleClient, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	if strings.TrimSpace(language) == "" {
		language = "en-US"
	}
	return &GoogleClient{client: c, language: language}, nil
}

func (c *GoogleClient) Transcribe(ctx context.Context, payload []byte, hint ContainerHint) (string, error) {
	if hint.Empty() {
		return "", ErrMissingContainerHint
	}

	cfg := &speechpb.RecognitionConfig{
		LanguageCode: c.language,
	}
	switch hint.MimeType {
	case "audio/wav", "audio/x-wav":
		// Recognize wants raw samples for LINEAR16, so strip the
		// container and take the sample rate from its format chunk.
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = 16000
		if info, pcm, err := audio.ParseWAV(payload); err == nil {
			cfg.SampleRateHertz = int32(info.SampleRate)
			payload = pcm
		}
	case "audio/l16", "audio/pcm":
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = 16000
	case "audio/webm":
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	case "audio/ogg":
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case "audio/mpeg":
		cfg.Encoding = speechpb.RecognitionConfig_MP3
		cfg.SampleRateHertz = 16000
	default:
		cfg.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}

	resp, err := c.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: payload},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, result.Alternatives[0].Transcript)
	}
	return strings.Join(parts, " "), nil
}

func (c *GoogleClient) Close() error {
	return c.client.Close()
}
