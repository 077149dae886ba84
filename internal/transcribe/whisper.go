package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/OrFisher/real-time-speech-processor/internal/audio"
)

type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint. The audio goes out as a multipart file part carrying the
// declared filename and mime type.
type WhisperClient struct {
	cfg  WhisperConfig
	http *http.Client
}

func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WhisperClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, payload []byte, hint ContainerHint) (string, error) {
	if hint.Empty() {
		return "", ErrMissingContainerHint
	}

	// The API rejects bare samples; wrap raw PCM in a WAV container.
	switch hint.MimeType {
	case "audio/l16", "audio/pcm":
		payload = audio.EncodeWAVPCM16LE(payload, 16000)
		hint = HintWAV
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, hint.Filename))
	header.Set("Content-Type", hint.MimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	if err := w.WriteField("model", c.cfg.Model); err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s: %s", ErrTranscriptionFailed, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}
	return out.Text, nil
}
