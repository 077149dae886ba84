// Package queue carries transcription jobs from live connections to the
// worker pool, possibly across processes. Submission is fire-and-forget;
// consumption is at-least-once, with no deduplication: a redelivered job
// transcribes the same audio twice. Jobs carry a session id plus chunk
// sequence number so downstream consumers that care can detect it.
package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
)

// Job names, one per source of audio.
const (
	JobProcessAudioChunk = "process_audio_chunk"
	JobProcessAudioFile  = "process_audio_file"
)

// Job is one asynchronous unit of work converting a buffered audio
// chunk into text. Audio travels base64-encoded so the payload is plain
// JSON on any transport.
type Job struct {
	Name        string `json:"job"`
	AudioB64    string `json:"audio_b64"`
	SessionID   string `json:"session_id"`
	SpeakerType string `json:"speaker_type"`
	ChunkSeq    int    `json:"chunk_seq"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
}

// NewChunkJob builds a job for a buffered websocket chunk. The container
// hint is mandatory: the transcription service needs to know how the
// bytes are framed or it silently produces garbage.
func NewChunkJob(audio []byte, sessionID string, speaker protocol.SpeakerType, seq int, hint transcribe.ContainerHint) Job {
	return Job{
		Name:        JobProcessAudioChunk,
		AudioB64:    base64.StdEncoding.EncodeToString(audio),
		SessionID:   sessionID,
		SpeakerType: string(speaker),
		ChunkSeq:    seq,
		Filename:    hint.Filename,
		MimeType:    hint.MimeType,
	}
}

// NewFileJob builds a job for an uploaded audio file.
func NewFileJob(audio []byte, sessionID string, speaker protocol.SpeakerType, hint transcribe.ContainerHint) Job {
	return Job{
		Name:        JobProcessAudioFile,
		AudioB64:    base64.StdEncoding.EncodeToString(audio),
		SessionID:   sessionID,
		SpeakerType: string(speaker),
		Filename:    hint.Filename,
		MimeType:    hint.MimeType,
	}
}

// Audio decodes the job payload back into raw bytes.
func (j Job) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(j.AudioB64)
	if err != nil {
		return nil, fmt.Errorf("decode job audio: %w", err)
	}
	return data, nil
}

// Hint returns the declared container hint for the audio bytes.
func (j Job) Hint() transcribe.ContainerHint {
	return transcribe.ContainerHint{Filename: j.Filename, MimeType: j.MimeType}
}

func EncodeJob(j Job) ([]byte, error) {
	return json.Marshal(j)
}

func DecodeJob(raw []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

// Handler processes one job. It never returns: job failures are fully
// handled (logged) inside, since the queue offers no retry.
type Handler func(ctx context.Context, job Job)

// Submitter is the narrow interface connections use to dispatch jobs.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Queue is a durable-ish hand-off between connection tasks and the
// transcription worker pool.
type Queue interface {
	Submitter
	// Consume blocks, invoking fn for each job until ctx is cancelled.
	Consume(ctx context.Context, fn Handler) error
	Close() error
}
