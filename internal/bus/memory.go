package bus

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
)

const subscriberBuffer = 256

// Memory is the in-process bus used in single-process mode and as the
// local fan-out stage of the Kafka bus.
type Memory struct {
	mu          sync.Mutex
	subscribers map[string]map[int]chan protocol.Event
	nextSubID   int
	closed      bool
}

func NewMemory() *Memory {
	return &Memory{subscribers: make(map[string]map[int]chan protocol.Event)}
}

func (m *Memory) Publish(_ context.Context, sessionID string, ev protocol.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}

	subs := m.subscribers[sessionID]
	if len(subs) == 0 {
		// No subscribers: drop, by contract.
		return nil
	}
	for id, ch := range subs {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Str("session_id", sessionID).
				Int("subscriber", id).
				Str("kind", string(ev.Kind)).
				Msg("subscriber queue full, event dropped")
		}
	}
	return nil
}

func (m *Memory) Subscribe(sessionID string) (<-chan protocol.Event, func(), error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		ch := make(chan protocol.Event)
		close(ch)
		return ch, func() {}, nil
	}

	ch := make(chan protocol.Event, subscriberBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrUnavailable
	}
	m.nextSubID++
	id := m.nextSubID
	if _, ok := m.subscribers[sessionID]; !ok {
		m.subscribers[sessionID] = make(map[int]chan protocol.Event)
	}
	m.subscribers[sessionID][id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[sessionID]
		if subs == nil {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(m.subscribers, sessionID)
		}
	}
	return ch, cancel, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for sessionID, subs := range m.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(m.subscribers, sessionID)
	}
	return nil
}

// SubscriberCount reports live subscriptions for a session.
func (m *Memory) SubscriberCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[sessionID])
}
