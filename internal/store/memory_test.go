package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
)

func TestMemoryStoreKeywordCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.CreateKeyword(ctx, keywords.Keyword{Word: "budget", TalkingPoint: "Flexible pricing.", Active: true})
	if err != nil {
		t.Fatalf("CreateKeyword() error = %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("created keyword missing id/timestamps: %+v", created)
	}

	got, err := s.GetKeyword(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetKeyword() error = %v", err)
	}
	if got.Word != "budget" || !got.Active {
		t.Fatalf("unexpected keyword: %+v", got)
	}

	got.TalkingPoint = "Updated point."
	got.Active = false
	updated, err := s.UpdateKeyword(ctx, got)
	if err != nil {
		t.Fatalf("UpdateKeyword() error = %v", err)
	}
	if updated.TalkingPoint != "Updated point." || updated.Active {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := s.DeleteKeyword(ctx, created.ID); err != nil {
		t.Fatalf("DeleteKeyword() error = %v", err)
	}
	if _, err := s.GetKeyword(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRejectsDuplicateWords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateKeyword(ctx, keywords.Keyword{Word: "price", Active: true}); err != nil {
		t.Fatalf("CreateKeyword() error = %v", err)
	}
	if _, err := s.CreateKeyword(ctx, keywords.Keyword{Word: "PRICE", Active: true}); !errors.Is(err, ErrWordExists) {
		t.Fatalf("error = %v, want ErrWordExists", err)
	}
}

func TestMemoryStoreActiveKeywordsOrderedByWord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, spec := range []struct {
		word   string
		active bool
	}{
		{"zebra", true},
		{"apple", true},
		{"middle", false},
		{"Banana", true},
	} {
		if _, err := s.CreateKeyword(ctx, keywords.Keyword{Word: spec.word, Active: spec.active}); err != nil {
			t.Fatalf("CreateKeyword(%q) error = %v", spec.word, err)
		}
	}

	active, err := s.ActiveKeywords(ctx)
	if err != nil {
		t.Fatalf("ActiveKeywords() error = %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active count = %d, want 3", len(active))
	}
	want := []string{"apple", "Banana", "zebra"}
	for i, kw := range active {
		if kw.Word != want[i] {
			t.Fatalf("active[%d] = %q, want %q", i, kw.Word, want[i])
		}
	}
}

func TestMemoryStoreTranscriptionsOrderedByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, text := range []string{"second", "first", "third"} {
		offsets := []time.Duration{time.Minute, 0, 2 * time.Minute}
		rec := Transcription{SessionID: "s1", SpeakerType: "prospect", Text: text, Timestamp: base.Add(offsets[i])}
		if err := s.SaveTranscription(ctx, rec); err != nil {
			t.Fatalf("SaveTranscription() error = %v", err)
		}
	}
	if err := s.SaveTranscription(ctx, Transcription{SessionID: "other", Text: "elsewhere"}); err != nil {
		t.Fatalf("SaveTranscription() error = %v", err)
	}

	got, err := s.ListTranscriptions(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListTranscriptions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("records = %d, want 3", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Text != want {
			t.Fatalf("records[%d] = %q, want %q", i, got[i].Text, want)
		}
	}
}
