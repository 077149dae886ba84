// Package bus routes transcription and alert events from transcription
// jobs to every live connection subscribed to a session. Delivery is
// at-most-once and best-effort: an event published while a session has
// zero subscribers is dropped. Events published for the same session are
// delivered to each subscriber in publish order; there is no ordering
// guarantee across sessions.
package bus

import (
	"context"
	"errors"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
)

// ErrUnavailable is returned by Subscribe when the bus backend cannot
// be reached. Connections treat it as degraded mode, not fatal.
var ErrUnavailable = errors.New("event bus unavailable")

// Bus is the session-keyed publish/subscribe mechanism. Publishers and
// subscribers rendezvous purely by session id string; publishers never
// see the subscriber set.
type Bus interface {
	Publish(ctx context.Context, sessionID string, ev protocol.Event) error
	// Subscribe returns a stream of events for the session and a
	// cancel func that releases the subscription and closes the stream.
	Subscribe(sessionID string) (<-chan protocol.Event, func(), error)
	Close() error
}
