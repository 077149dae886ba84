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
	"github.com/OrFisher/real-time-speech-processor/internal/httpapi"
	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/session"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
	"github.com/OrFisher/real-time-speech-processor/internal/transcribe"
	"github.com/OrFisher/real-time-speech-processor/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	observability.InitLogging(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("no DATABASE_URL, keywords and history are in-memory only")
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	var (
		eventBus bus.Bus
		jobQueue queue.Queue
	)
	if cfg.KafkaEnabled() {
		kb, err := bus.NewKafka(bus.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaEventTopic})
		if err != nil {
			log.Fatal().Err(err).Msg("kafka bus init failed")
		}
		eventBus = kb
		kq, err := queue.NewKafka(queue.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaJobTopic, Group: cfg.KafkaGroup})
		if err != nil {
			log.Fatal().Err(err).Msg("kafka queue init failed")
		}
		jobQueue = kq
		log.Info().Msg("cross-process mode: jobs handled by transcriber processes")
	} else {
		eventBus = bus.NewMemory()
		jobQueue = queue.NewMemory(0)

		// Single-process mode: run the worker pool inline.
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
		log.Info().Str("provider", provider).Msg("single-process mode: inline worker pool")

		exec := worker.NewExecutor(transcriber, st, eventBus, metrics, cfg.JobTimeout)
		pool := worker.NewPool(jobQueue, exec, cfg.WorkerCount)
		go pool.Run(runCtx)
	}
	defer eventBus.Close()
	defer jobQueue.Close()

	registry := session.NewRegistry()
	api := httpapi.New(cfg, registry, eventBus, jobQueue, st, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
