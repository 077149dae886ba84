package bus

import (
	"context"
	"testing"
	"time"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
)

func transcriptFor(session, text string) protocol.Event {
	return protocol.NewTranscriptEventMsg(protocol.TranscriptEvent{
		SessionID:   session,
		SpeakerType: protocol.SpeakerProspect,
		Text:        text,
		Timestamp:   time.Now().UTC(),
	})
}

func recv(t *testing.T, ch <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return protocol.Event{}
	}
}

func TestMemoryFanOutToSessionSubscribersOnly(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	s1a, cancelA, err := b.Subscribe("S1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelA()
	s1b, cancelB, err := b.Subscribe("S1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelB()
	s2, cancelC, err := b.Subscribe("S2")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelC()

	if err := b.Publish(context.Background(), "S1", transcriptFor("S1", "hello")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, ch := range []<-chan protocol.Event{s1a, s1b} {
		ev := recv(t, ch)
		if ev.Kind != protocol.EventTranscript || ev.Transcript.Text != "hello" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	select {
	case ev := <-s2:
		t.Fatalf("S2 subscriber received event for S1: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryPreservesPublishOrderPerSession(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ch, cancel, err := b.Subscribe("S1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()

	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		if err := b.Publish(context.Background(), "S1", transcriptFor("S1", text)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	for _, want := range texts {
		ev := recv(t, ch)
		if ev.Transcript.Text != want {
			t.Fatalf("text = %q, want %q", ev.Transcript.Text, want)
		}
	}
}

func TestMemoryDropsWithZeroSubscribers(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	// No error, no persistence: the event just disappears.
	if err := b.Publish(context.Background(), "S1", transcriptFor("S1", "lost")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	ch, cancel, err := b.Subscribe("S1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancel()
	select {
	case ev := <-ch:
		t.Fatalf("late subscriber received pre-subscribe event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryUnsubscribeClosesStream(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	ch, cancel, err := b.Subscribe("S1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if n := b.SubscriberCount("S1"); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("stream should be closed after cancel")
	}
	if n := b.SubscriberCount("S1"); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
	// Cancel twice is safe.
	cancel()
}

func TestMemoryPublishAfterCloseFails(t *testing.T) {
	b := NewMemory()
	b.Close()
	if err := b.Publish(context.Background(), "S1", transcriptFor("S1", "x")); err == nil {
		t.Fatalf("expected error publishing on closed bus")
	}
	if _, _, err := b.Subscribe("S1"); err == nil {
		t.Fatalf("expected error subscribing on closed bus")
	}
}
