package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeSetSpeakerType   MessageType = "set_speaker_type"
	TypeTranscription    MessageType = "transcription"
	TypeAlert            MessageType = "alert"
	TypeSelfTestResponse MessageType = "self_test_response"
)

// SpeakerType tags whose speech a transcript fragment represents.
type SpeakerType string

const (
	SpeakerProspect SpeakerType = "prospect"
	SpeakerAgent    SpeakerType = "agent"
	SpeakerUnknown  SpeakerType = "unknown"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// ParseSpeakerType normalizes a wire value to a known speaker type,
// falling back to prospect, which is the default for a new connection.
func ParseSpeakerType(raw string) SpeakerType {
	switch SpeakerType(strings.ToLower(strings.TrimSpace(raw))) {
	case SpeakerAgent:
		return SpeakerAgent
	case SpeakerUnknown:
		return SpeakerUnknown
	default:
		return SpeakerProspect
	}
}

type Envelope struct {
	Type MessageType `json:"type"`
}

// SetSpeakerType is the only inbound text control frame.
type SetSpeakerType struct {
	Type        MessageType `json:"type"`
	SpeakerType string      `json:"speaker_type"`
}

// ParseControlMessage decodes an inbound text frame. Binary audio frames
// never reach this path.
func ParseControlMessage(raw []byte) (SetSpeakerType, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SetSpeakerType{}, fmt.Errorf("invalid envelope: %w", err)
	}
	switch env.Type {
	case TypeSetSpeakerType:
		var msg SetSpeakerType
		if err := json.Unmarshal(raw, &msg); err != nil {
			return SetSpeakerType{}, err
		}
		return msg, nil
	default:
		return SetSpeakerType{}, ErrUnsupportedType
	}
}

// TranscriptionData is the payload of an outbound transcription frame.
type TranscriptionData struct {
	Text        string `json:"text"`
	SpeakerType string `json:"speaker_type"`
	Timestamp   string `json:"timestamp"`
}

// AlertData is the payload of an outbound keyword alert frame.
type AlertData struct {
	Keyword      string `json:"keyword"`
	TalkingPoint string `json:"talking_point"`
	FullText     string `json:"full_text"`
	SpeakerType  string `json:"speaker_type"`
}

type TranscriptionFrame struct {
	Type MessageType       `json:"type"`
	Data TranscriptionData `json:"data"`
}

type AlertFrame struct {
	Type MessageType `json:"type"`
	Data AlertData   `json:"data"`
}

type SelfTestFrame struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

// NewTranscriptionFrame renders a transcript event for the wire. The
// timestamp goes out as ISO 8601 in UTC.
func NewTranscriptionFrame(text string, speaker SpeakerType, ts time.Time) TranscriptionFrame {
	return TranscriptionFrame{
		Type: TypeTranscription,
		Data: TranscriptionData{
			Text:        text,
			SpeakerType: string(speaker),
			Timestamp:   ts.UTC().Format(time.RFC3339),
		},
	}
}

func NewAlertFrame(keyword, talkingPoint, fullText string, speaker SpeakerType) AlertFrame {
	return AlertFrame{
		Type: TypeAlert,
		Data: AlertData{
			Keyword:      keyword,
			TalkingPoint: talkingPoint,
			FullText:     fullText,
			SpeakerType:  string(speaker),
		},
	}
}
