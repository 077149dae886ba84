package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind discriminates the closed set of events that travel on the
// session event bus.
type EventKind string

const (
	EventTranscript EventKind = "transcription"
	EventAlert      EventKind = "alert"
	EventSelfTest   EventKind = "self_test"
)

// TranscriptEvent is produced once per completed transcription job.
type TranscriptEvent struct {
	SessionID   string      `json:"session_id"`
	SpeakerType SpeakerType `json:"speaker_type"`
	Text        string      `json:"text"`
	Timestamp   time.Time   `json:"timestamp"`
	ChunkSeq    int         `json:"chunk_seq,omitempty"`
}

// AlertEvent is produced once per matched active keyword, prospect
// speech only.
type AlertEvent struct {
	SessionID    string      `json:"session_id"`
	SpeakerType  SpeakerType `json:"speaker_type"`
	Keyword      string      `json:"keyword"`
	TalkingPoint string      `json:"talking_point"`
	FullText     string      `json:"full_text"`
}

// SelfTestEvent is published by a connection to its own session right
// after subscribing, to confirm the bus round-trip works.
type SelfTestEvent struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Event is a tagged union over the event variants. Exactly one of the
// pointer fields is set, matching Kind.
type Event struct {
	Kind       EventKind        `json:"kind"`
	Transcript *TranscriptEvent `json:"transcription,omitempty"`
	Alert      *AlertEvent      `json:"alert,omitempty"`
	SelfTest   *SelfTestEvent   `json:"self_test,omitempty"`
}

func NewTranscriptEventMsg(ev TranscriptEvent) Event {
	return Event{Kind: EventTranscript, Transcript: &ev}
}

func NewAlertEventMsg(ev AlertEvent) Event {
	return Event{Kind: EventAlert, Alert: &ev}
}

func NewSelfTestEventMsg(ev SelfTestEvent) Event {
	return Event{Kind: EventSelfTest, SelfTest: &ev}
}

// SessionID returns the session the event is addressed to.
func (e Event) SessionID() string {
	switch e.Kind {
	case EventTranscript:
		if e.Transcript != nil {
			return e.Transcript.SessionID
		}
	case EventAlert:
		if e.Alert != nil {
			return e.Alert.SessionID
		}
	case EventSelfTest:
		if e.SelfTest != nil {
			return e.SelfTest.SessionID
		}
	}
	return ""
}

// Valid reports whether the tag and payload agree.
func (e Event) Valid() bool {
	switch e.Kind {
	case EventTranscript:
		return e.Transcript != nil
	case EventAlert:
		return e.Alert != nil
	case EventSelfTest:
		return e.SelfTest != nil
	default:
		return false
	}
}

// EncodeEvent serializes an event for transport between processes.
func EncodeEvent(e Event) ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("event kind %q missing payload", e.Kind)
	}
	return json.Marshal(e)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if !e.Valid() {
		return Event{}, fmt.Errorf("event kind %q missing payload", e.Kind)
	}
	return e, nil
}
