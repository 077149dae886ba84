// Package worker executes transcription jobs off the connection's
// critical path: transcribe, persist, broadcast, scan for keywords.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/OrFisher/real-time-speech-processor/internal/bus"
	"github.com/OrFisher/real-time-speech-processor/internal/keywords"
	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
)

const defaultJobTimeout = 45 * time.Second

type Executor struct {
	transcriber transcribe.Client
	store       store.Store
	bus         bus.Bus
	metrics     *observability.Metrics
	jobTimeout  time.Duration
	log         zerolog.Logger
}

func NewExecutor(transcriber transcribe.Client, st store.Store, b bus.Bus, metrics *observability.Metrics, jobTimeout time.Duration) *Executor {
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Executor{
		transcriber: transcriber,
		store:       st,
		bus:         b,
		metrics:     metrics,
		jobTimeout:  jobTimeout,
		log:         observability.ComponentLogger("worker"),
	}
}

// Process runs one job to completion. A failed transcription publishes
// nothing and persists nothing: the audio chunk is permanently lost,
// which is the accepted failure mode of this pipeline. The job is never
// retried here.
func (e *Executor) Process(ctx context.Context, job queue.Job) {
	logger := e.log.With().
		Str("session_id", job.SessionID).
		Str("job", job.Name).
		Int("chunk_seq", job.ChunkSeq).
		Logger()

	audio, err := job.Audio()
	if err != nil {
		logger.Error().Err(err).Msg("job payload undecodable, dropping")
		e.observeJob("invalid")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.jobTimeout)
	defer cancel()

	start := time.Now()
	text, err := e.transcriber.Transcribe(callCtx, audio, job.Hint())
	if e.metrics != nil {
		e.metrics.ObserveTranscribeLatency(time.Since(start))
	}
	if err != nil {
		logger.Error().Err(err).Int("bytes", len(audio)).Msg("transcription failed, audio lost")
		e.observeJob("failed")
		return
	}
	e.observeJob("succeeded")

	speaker := protocol.ParseSpeakerType(job.SpeakerType)
	ts := time.Now().UTC()
	logger.Info().Str("speaker_type", string(speaker)).Int("chars", len(text)).Msg("chunk transcribed")

	// Historical record first; a write failure is logged and the event
	// still goes out.
	if err := e.store.SaveTranscription(ctx, store.Transcription{
		SessionID:   job.SessionID,
		SpeakerType: string(speaker),
		Text:        text,
		Timestamp:   ts,
	}); err != nil {
		logger.Error().Err(err).Msg("transcription record not saved")
	}

	transcriptEv := protocol.NewTranscriptEventMsg(protocol.TranscriptEvent{
		SessionID:   job.SessionID,
		SpeakerType: speaker,
		Text:        text,
		Timestamp:   ts,
		ChunkSeq:    job.ChunkSeq,
	})
	if err := e.bus.Publish(ctx, job.SessionID, transcriptEv); err != nil {
		logger.Error().Err(err).Msg("transcript broadcast failed")
		e.observeBus(protocol.EventTranscript, "error")
	} else {
		e.observeBus(protocol.EventTranscript, "ok")
	}

	if speaker != protocol.SpeakerProspect {
		return
	}
	e.publishAlerts(ctx, logger, job.SessionID, speaker, text)
}

// publishAlerts re-fetches the active keyword set on every job — no
// cache to invalidate — and emits one alert per match in keyword order.
func (e *Executor) publishAlerts(ctx context.Context, logger zerolog.Logger, sessionID string, speaker protocol.SpeakerType, text string) {
	active, err := e.store.ActiveKeywords(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("active keyword lookup failed, no alerts for this chunk")
		return
	}

	for _, match := range keywords.MatchText(text, active) {
		ev := protocol.NewAlertEventMsg(protocol.AlertEvent{
			SessionID:    sessionID,
			SpeakerType:  speaker,
			Keyword:      match.Keyword,
			TalkingPoint: match.TalkingPoint,
			FullText:     text,
		})
		if err := e.bus.Publish(ctx, sessionID, ev); err != nil {
			logger.Error().Err(err).Str("keyword", match.Keyword).Msg("alert broadcast failed")
			e.observeBus(protocol.EventAlert, "error")
			continue
		}
		logger.Info().Str("keyword", match.Keyword).Msg("keyword detected in prospect speech")
		e.observeBus(protocol.EventAlert, "ok")
		if e.metrics != nil {
			e.metrics.KeywordAlerts.Inc()
		}
	}
}

func (e *Executor) observeJob(outcome string) {
	if e.metrics != nil {
		e.metrics.JobOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (e *Executor) observeBus(kind protocol.EventKind, outcome string) {
	if e.metrics != nil {
		e.metrics.BusEvents.WithLabelValues(string(kind), outcome).Inc()
	}
}
