// Package stream owns the per-connection receive path: buffering raw
// audio frames, flushing them to the job queue, and forwarding session
// events back to the client as websocket frames.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/OrFisher/real-time-speech-processor/internal/bus"
	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/session"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
)

// MinFlushBytes is one second of 16 kHz 16-bit mono PCM. Buffers below
// this are not worth a transcription round-trip.
const MinFlushBytes = 16000 * 2 * 1

const (
	defaultFlushInterval = time.Second
	outboundBuffer       = 64
)

// flush triggers, used as the metric label.
const (
	flushTriggerInterval   = "interval"
	flushTriggerDisconnect = "disconnect"
)

// Config wires one websocket connection into the pipeline.
type Config struct {
	SessionID string
	Registry  *session.Registry
	Bus       bus.Bus
	Queue     queue.Submitter
	Metrics   *observability.Metrics

	// FlushInterval is how often a non-empty buffer below the size
	// threshold is flushed anyway. Zero means the default of one second.
	FlushInterval time.Duration
	// MinFlushBytes overrides the size threshold; zero means MinFlushBytes.
	MinFlushBytes int
	// Hint describes the container the client streams; zero value means
	// WebM, which is what browser MediaRecorder produces.
	Hint transcribe.ContainerHint
}

// Conn is the server-side state of one audio websocket connection. The
// transport layer feeds it frames via HandleBinary/HandleText and drains
// Outbound; everything else happens internally.
type Conn struct {
	id        string
	sessionID string

	registry *session.Registry
	bus      bus.Bus
	queue    queue.Submitter
	metrics  *observability.Metrics
	log      zerolog.Logger

	flushInterval time.Duration
	minFlush      int
	hint          transcribe.ContainerHint

	mu       sync.Mutex
	buf      []byte
	speaker  protocol.SpeakerType
	chunkSeq int
	closed   bool

	outbound    chan []byte
	stopFlusher chan struct{}
	unsubscribe func()
	degraded    bool
	wg          sync.WaitGroup
}

func NewConn(cfg Config) *Conn {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	minFlush := cfg.MinFlushBytes
	if minFlush <= 0 {
		minFlush = MinFlushBytes
	}
	hint := cfg.Hint
	if hint.Empty() {
		hint = transcribe.HintWebM
	}
	id := uuid.NewString()
	return &Conn{
		id:            id,
		sessionID:     cfg.SessionID,
		registry:      cfg.Registry,
		bus:           cfg.Bus,
		queue:         cfg.Queue,
		metrics:       cfg.Metrics,
		log:           observability.SessionLogger("stream", cfg.SessionID).With().Str("conn_id", id).Logger(),
		flushInterval: interval,
		minFlush:      minFlush,
		hint:          hint,
		speaker:       protocol.SpeakerProspect,
		outbound:      make(chan []byte, outboundBuffer),
		stopFlusher:   make(chan struct{}),
	}
}

// ID returns the connection's unique id within its session.
func (c *Conn) ID() string { return c.id }

// Outbound is the stream of encoded frames to write to the client. It
// is closed after Disconnect once all pending events are drained.
func (c *Conn) Outbound() <-chan []byte { return c.outbound }

// Connect joins the session, subscribes to its events and starts the
// periodic flush loop. A broken event bus degrades the connection to
// ingest-only instead of rejecting it.
func (c *Conn) Connect(ctx context.Context) error {
	c.registry.Join(c.sessionID, c.id)
	if c.metrics != nil {
		c.metrics.ActiveConnections.Inc()
		c.metrics.ActiveSessions.Set(float64(c.registry.SessionCount()))
	}

	events, cancel, err := c.bus.Subscribe(c.sessionID)
	switch {
	case errors.Is(err, bus.ErrUnavailable):
		c.log.Warn().Msg("event bus unavailable, connection is ingest-only")
		c.degraded = true
	case err != nil:
		c.registry.Leave(c.sessionID, c.id)
		return err
	default:
		c.unsubscribe = cancel
		c.wg.Add(1)
		go c.forwardEvents(events)
		c.selfTest(ctx)
	}

	c.wg.Add(1)
	go c.flushLoop(ctx)

	c.log.Info().Bool("degraded", c.degraded).Msg("connection established")
	return nil
}

// Disconnect flushes whatever audio is still buffered, leaves the
// session and tears the connection down. Safe to call once.
func (c *Conn) Disconnect(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopFlusher)
	c.flush(ctx, flushTriggerDisconnect, true)
	c.registry.Leave(c.sessionID, c.id)
	if c.unsubscribe != nil {
		c.unsubscribe()
	} else {
		// No forwarder owns the channel in degraded mode.
		close(c.outbound)
	}
	if c.metrics != nil {
		c.metrics.ActiveConnections.Dec()
		c.metrics.ActiveSessions.Set(float64(c.registry.SessionCount()))
	}
	c.wg.Wait()
	c.log.Info().Msg("connection closed")
}

// HandleBinary appends an audio frame to the buffer. It never flushes
// itself; the periodic loop picks the buffer up once it crosses the
// size threshold, which keeps frame reception free of submit latency.
func (c *Conn) HandleBinary(_ context.Context, data []byte) {
	if c.metrics != nil {
		c.metrics.WSMessages.WithLabelValues("in", "binary").Inc()
	}
	c.mu.Lock()
	c.buf = append(c.buf, data...)
	c.mu.Unlock()
}

// HandleText processes an inbound control frame. Malformed or unknown
// frames are logged and ignored; they never terminate the connection.
func (c *Conn) HandleText(_ context.Context, raw []byte) {
	if c.metrics != nil {
		c.metrics.WSMessages.WithLabelValues("in", "text").Inc()
	}
	msg, err := protocol.ParseControlMessage(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("ignoring control frame")
		return
	}
	speaker := protocol.ParseSpeakerType(msg.SpeakerType)
	c.mu.Lock()
	c.speaker = speaker
	c.mu.Unlock()
	c.log.Info().Str("speaker_type", string(speaker)).Msg("speaker type set")
}

// Speaker returns the role currently attributed to inbound audio.
func (c *Conn) Speaker() protocol.SpeakerType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaker
}

// BufferedBytes reports the current buffer size.
func (c *Conn) BufferedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

func (c *Conn) flushLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush(ctx, flushTriggerInterval, false)
		case <-c.stopFlusher:
			return
		case <-ctx.Done():
			return
		}
	}
}

// flush swaps the buffer out under the lock and submits it with the
// lock released. An empty buffer is never submitted. Without force the
// buffer must also meet the size threshold: the periodic timer lets a
// short buffer keep accumulating, the disconnect path forces it out.
func (c *Conn) flush(ctx context.Context, trigger string, force bool) {
	c.mu.Lock()
	if len(c.buf) == 0 || (!force && len(c.buf) < c.minFlush) {
		c.mu.Unlock()
		return
	}
	audio := c.buf
	c.buf = nil
	c.chunkSeq++
	seq := c.chunkSeq
	speaker := c.speaker
	c.mu.Unlock()

	job := queue.NewChunkJob(audio, c.sessionID, speaker, seq, c.hint)
	if err := c.queue.Submit(ctx, job); err != nil {
		c.log.Error().Err(err).Int("bytes", len(audio)).Msg("chunk submit failed, audio dropped")
		return
	}
	if c.metrics != nil {
		c.metrics.BufferFlushes.WithLabelValues(trigger).Inc()
		c.metrics.FlushBytes.Observe(float64(len(audio)))
	}
	c.log.Debug().Str("trigger", trigger).Int("bytes", len(audio)).Int("chunk_seq", seq).Msg("buffer flushed")
}

func (c *Conn) forwardEvents(events <-chan protocol.Event) {
	defer c.wg.Done()
	defer close(c.outbound)
	for ev := range events {
		frame, ok := c.encodeFrame(ev)
		if !ok {
			continue
		}
		select {
		case c.outbound <- frame:
		default:
			c.log.Warn().Str("kind", string(ev.Kind)).Msg("client too slow, frame dropped")
		}
	}
}

// encodeFrame renders a bus event as the client-facing JSON frame.
func (c *Conn) encodeFrame(ev protocol.Event) ([]byte, bool) {
	var payload any
	switch ev.Kind {
	case protocol.EventTranscript:
		t := ev.Transcript
		payload = protocol.NewTranscriptionFrame(t.Text, t.SpeakerType, t.Timestamp)
	case protocol.EventAlert:
		a := ev.Alert
		payload = protocol.NewAlertFrame(a.Keyword, a.TalkingPoint, a.FullText, a.SpeakerType)
	case protocol.EventSelfTest:
		payload = protocol.SelfTestFrame{Type: protocol.TypeSelfTestResponse, Data: ev.SelfTest.Message}
	default:
		c.log.Warn().Str("kind", string(ev.Kind)).Msg("unknown event kind, not forwarded")
		return nil, false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Msg("frame marshal failed")
		return nil, false
	}
	return raw, true
}

// selfTest publishes a message to the connection's own session; seeing
// it come back on Outbound proves the bus round-trip end to end.
func (c *Conn) selfTest(ctx context.Context) {
	ev := protocol.NewSelfTestEventMsg(protocol.SelfTestEvent{
		SessionID: c.sessionID,
		Message:   "self-test ok",
	})
	if err := c.bus.Publish(ctx, c.sessionID, ev); err != nil {
		c.log.Warn().Err(err).Msg("self-test publish failed")
	}
}
