package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/OrFisher/real-time-speech-processor/internal/bus"
	"github.com/OrFisher/real-time-speech-processor/internal/config"
	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
	"github.com/OrFisher/real-time-speech-processor/internal/worker"
)

// transcriber is the horizontally scalable worker process. It shares a
// consumer group with its siblings, so each job lands on exactly one of
// them, and publishes results back over the event bus.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	observability.InitLogging(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics(cfg.MetricsNamespace + "_worker")

	if !cfg.KafkaEnabled() {
		log.Fatal().Msg("KAFKA_BROKERS is required: without it speechd runs workers inline")
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	eventBus, err := bus.NewKafka(bus.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaEventTopic})
	if err != nil {
		log.Fatal().Err(err).Msg("kafka bus init failed")
	}
	defer eventBus.Close()

	jobQueue, err := queue.NewKafka(queue.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaJobTopic, Group: cfg.KafkaGroup})
	if err != nil {
		log.Fatal().Err(err).Msg("kafka queue init failed")
	}
	defer jobQueue.Close()

	transcriber, provider, err := transcribe.Select(ctx, transcribe.ProviderConfig{
		Provider:       cfg.TranscribeProvider,
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.OpenAIBaseURL,
		WhisperModel:   cfg.WhisperModel,
		GoogleLanguage: cfg.GoogleLanguage,
		Timeout:        cfg.TranscribeTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("transcription provider init failed")
	}
	log.Info().Str("provider", provider).Int("workers", cfg.WorkerCount).Msg("transcriber starting")

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	// Metrics and liveness only; this process has no API surface.
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	httpServer := &http.Server{Addr: cfg.BindAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	exec := worker.NewExecutor(transcriber, st, eventBus, metrics, cfg.JobTimeout)
	pool := worker.NewPool(jobQueue, exec, cfg.WorkerCount)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(runCtx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	<-poolDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	log.Info().Msg("shutdown complete")
}
