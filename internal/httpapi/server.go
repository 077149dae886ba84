// Package httpapi is the outer surface of the ingest process: the audio
// websocket, keyword management, file upload and health endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/OrFisher/real-time-speech-processor/internal/bus"
	"github.com/OrFisher/real-time-speech-processor/internal/config"
	"github.com/OrFisher/real-time-speech-processor/internal/observability"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/session"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
	"github.com/OrFisher/real-time-speech-processor/internal/stream"
)

const (
	wsWriteTimeout       = 10 * time.Second
	defaultWSReadTimeout = 120 * time.Second
)

type Server struct {
	cfg      config.Config
	registry *session.Registry
	bus      bus.Bus
	queue    queue.Submitter
	store    store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func New(cfg config.Config, registry *session.Registry, b bus.Bus, q queue.Submitter, st store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		bus:      b,
		queue:    q,
		store:    st,
		metrics:  metrics,
		log:      observability.ComponentLogger("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from
				// the same origin, so other sites cannot drive a caller's
				// mic session if the service is ever exposed publicly.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws/audio/{sessionID}", s.handleAudioWS)

	r.Post("/v1/keywords", s.handleCreateKeyword)
	r.Get("/v1/keywords", s.handleListKeywords)
	r.Get("/v1/keywords/{id}", s.handleGetKeyword)
	r.Put("/v1/keywords/{id}", s.handleUpdateKeyword)
	r.Delete("/v1/keywords/{id}", s.handleDeleteKeyword)

	r.Post("/v1/audio/upload", s.handleUploadAudio)
	r.Get("/v1/sessions/{sessionID}/transcriptions", s.handleListTranscriptions)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"active_sessions":    s.registry.SessionCount(),
		"active_connections": s.registry.ConnectionCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleAudioWS upgrades the connection and bridges it to a stream.Conn:
// a writer goroutine drains outbound frames while the read loop feeds
// inbound frames. Both directions stop when either side fails.
func (s *Server) handleAudioWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	sc := stream.NewConn(stream.Config{
		SessionID:     sessionID,
		Registry:      s.registry,
		Bus:           s.bus,
		Queue:         s.queue,
		Metrics:       s.metrics,
		FlushInterval: s.cfg.FlushInterval,
		MinFlushBytes: s.cfg.MinFlushBytes,
	})

	ctx := r.Context()
	if err := sc.Connect(ctx); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("connection setup failed")
		return
	}
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	readTimeout := s.cfg.WSReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultWSReadTimeout
	}

	// Calls run for many minutes, so the read deadline is a liveness
	// check, not a session cap: the writer pings ahead of every
	// deadline and both pongs and inbound frames push it back.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		pings := time.NewTicker(readTimeout * 9 / 10)
		defer pings.Stop()
		for {
			select {
			case frame, ok := <-sc.Outbound():
				if !ok {
					return
				}
				_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
				if s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("out", "text").Inc()
				}
			case <-pings.C:
				_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	ws.SetReadLimit(2 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		switch msgType {
		case websocket.BinaryMessage:
			sc.HandleBinary(ctx, data)
		case websocket.TextMessage:
			sc.HandleText(ctx, data)
		}
	}

	sc.Disconnect(ctx)
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}
	recs, err := s.store.ListTranscriptions(r.Context(), sessionID, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"transcriptions": recs,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
