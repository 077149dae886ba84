package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
)

// handleUploadAudio accepts a whole recording as multipart form data and
// queues it as a single transcription job. The response is 202: the
// transcript arrives later, on the session's event stream and in the
// history endpoint.
func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_audio", "form file field 'audio' is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	if len(audio) == 0 {
		respondError(w, http.StatusBadRequest, "empty_audio", "uploaded file is empty")
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	speaker := protocol.ParseSpeakerType(r.FormValue("speaker_type"))

	hint := transcribe.HintFromFilename(header.Filename)
	if ct := strings.TrimSpace(header.Header.Get("Content-Type")); ct != "" {
		hint.MimeType = ct
	}

	job := queue.NewFileJob(audio, sessionID, speaker, hint)
	if err := s.queue.Submit(r.Context(), job); err != nil {
		respondError(w, http.StatusServiceUnavailable, "queue_full", err.Error())
		return
	}

	s.log.Info().Str("session_id", sessionID).Str("filename", header.Filename).Int("bytes", len(audio)).Msg("upload queued")
	respondJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sessionID,
		"status":     "queued",
		"bytes":      len(audio),
	})
}
