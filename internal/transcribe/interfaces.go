// Package transcribe wraps the external speech-to-text service: bytes
// in, text out. No retries live here; retry policy, if any, belongs to
// the job queue.
package transcribe

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrTranscriptionFailed wraps any provider-side failure, including
// timeouts. The job that hit it is marked failed and its audio is lost.
var ErrTranscriptionFailed = errors.New("transcription failed")

// ErrMissingContainerHint rejects requests that do not declare how the
// audio bytes are framed. An unlabelled or mismatched container silently
// produces garbage from the service, so the hint is mandatory.
var ErrMissingContainerHint = errors.New("container hint is required")

// ContainerHint declares the framing of an audio payload.
type ContainerHint struct {
	Filename string
	MimeType string
}

var (
	HintWebM = ContainerHint{Filename: "audio.webm", MimeType: "audio/webm"}
	HintWAV  = ContainerHint{Filename: "audio.wav", MimeType: "audio/wav"}
	HintMP3  = ContainerHint{Filename: "audio.mp3", MimeType: "audio/mpeg"}
	HintOgg  = ContainerHint{Filename: "audio.ogg", MimeType: "audio/ogg"}
	// HintPCM is raw 16 kHz 16-bit mono samples with no container.
	HintPCM = ContainerHint{Filename: "audio.pcm", MimeType: "audio/l16"}
)

func (h ContainerHint) Empty() bool {
	return strings.TrimSpace(h.Filename) == "" || strings.TrimSpace(h.MimeType) == ""
}

// HintFromFilename maps a file extension to a container hint. Unknown
// extensions map to WAV, which is what uploaded recordings usually are.
func HintFromFilename(name string) ContainerHint {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return HintWebM
	case ".mp3":
		return HintMP3
	case ".ogg", ".opus":
		return HintOgg
	default:
		return HintWAV
	}
}

// Client converts one audio chunk into text.
type Client interface {
	Transcribe(ctx context.Context, audio []byte, hint ContainerHint) (string, error)
}
