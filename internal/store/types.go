// Package store persists keywords and historical transcription records.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrWordExists = errors.New("keyword word already exists")
)

// Transcription is one historical transcript fragment. Persistence is
// best-effort: a failed write never blocks event broadcast.
type Transcription struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	SpeakerType string    `json:"speaker_type"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store persists keywords and transcription history.
type Store interface {
	CreateKeyword(ctx context.Context, kw keywords.Keyword) (keywords.Keyword, error)
	GetKeyword(ctx context.Context, id string) (keywords.Keyword, error)
	ListKeywords(ctx context.Context) ([]keywords.Keyword, error)
	UpdateKeyword(ctx context.Context, kw keywords.Keyword) (keywords.Keyword, error)
	DeleteKeyword(ctx context.Context, id string) error

	// ActiveKeywords returns the currently active set ordered by word.
	// Callers re-fetch per transcription job; nothing is cached.
	ActiveKeywords(ctx context.Context) ([]keywords.Keyword, error)

	SaveTranscription(ctx context.Context, rec Transcription) error
	ListTranscriptions(ctx context.Context, sessionID string, limit int) ([]Transcription, error)

	Close() error
}

// New creates a postgres-backed store when configured, otherwise in-memory.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
