package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
)

// MemoryStore keeps everything in process. Used in single-process mode
// and tests.
type MemoryStore struct {
	mu             sync.RWMutex
	keywords       map[string]keywords.Keyword
	transcriptions map[string][]Transcription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keywords:       make(map[string]keywords.Keyword),
		transcriptions: make(map[string][]Transcription),
	}
}

func (s *MemoryStore) CreateKeyword(_ context.Context, kw keywords.Keyword) (keywords.Keyword, error) {
	kw.Word = strings.TrimSpace(kw.Word)
	if kw.Word == "" {
		return keywords.Keyword{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.keywords {
		if strings.EqualFold(existing.Word, kw.Word) {
			return keywords.Keyword{}, ErrWordExists
		}
	}
	now := time.Now().UTC()
	kw.ID = uuid.NewString()
	kw.CreatedAt = now
	kw.UpdatedAt = now
	s.keywords[kw.ID] = kw
	return kw, nil
}

func (s *MemoryStore) GetKeyword(_ context.Context, id string) (keywords.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kw, ok := s.keywords[id]
	if !ok {
		return keywords.Keyword{}, ErrNotFound
	}
	return kw, nil
}

func (s *MemoryStore) ListKeywords(_ context.Context) ([]keywords.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]keywords.Keyword, 0, len(s.keywords))
	for _, kw := range s.keywords {
		out = append(out, kw)
	}
	sortByWord(out)
	return out, nil
}

func (s *MemoryStore) UpdateKeyword(_ context.Context, kw keywords.Keyword) (keywords.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.keywords[kw.ID]
	if !ok {
		return keywords.Keyword{}, ErrNotFound
	}
	kw.Word = strings.TrimSpace(kw.Word)
	if kw.Word == "" {
		kw.Word = existing.Word
	}
	for id, other := range s.keywords {
		if id != kw.ID && strings.EqualFold(other.Word, kw.Word) {
			return keywords.Keyword{}, ErrWordExists
		}
	}
	kw.CreatedAt = existing.CreatedAt
	kw.UpdatedAt = time.Now().UTC()
	s.keywords[kw.ID] = kw
	return kw, nil
}

func (s *MemoryStore) DeleteKeyword(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keywords[id]; !ok {
		return ErrNotFound
	}
	delete(s.keywords, id)
	return nil
}

func (s *MemoryStore) ActiveKeywords(_ context.Context) ([]keywords.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]keywords.Keyword, 0, len(s.keywords))
	for _, kw := range s.keywords {
		if kw.Active {
			out = append(out, kw)
		}
	}
	sortByWord(out)
	return out, nil
}

func (s *MemoryStore) SaveTranscription(_ context.Context, rec Transcription) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptions[rec.SessionID] = append(s.transcriptions[rec.SessionID], rec)
	return nil
}

func (s *MemoryStore) ListTranscriptions(_ context.Context, sessionID string, limit int) ([]Transcription, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.transcriptions[sessionID]
	out := make([]Transcription, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortByWord(set []keywords.Keyword) {
	sort.SliceStable(set, func(i, j int) bool {
		return strings.ToLower(set[i].Word) < strings.ToLower(set[j].Word)
	})
}
