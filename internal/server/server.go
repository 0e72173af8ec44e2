// Package server exposes the avatar chat HTTP API: session lifecycle, chat
// exchanges with synthesised speech, avatar state, and a websocket event
// stream that keeps the browser in sync.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nipun-marak/realtime-avatar-chat/internal/chat"
	"github.com/nipun-marak/realtime-avatar-chat/internal/health"
	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/internal/voice"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Config holds the server's network settings.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// SessionSecret signs session cookies. Empty means a random per-process
	// secret.
	SessionSecret string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
}

// Server is the HTTP front end. Construct with [New], start with [Run].
type Server struct {
	companion *chat.Companion
	synth     *voice.Synthesizer
	users     memory.UserStore
	sessions  *SessionManager
	hub       *Hub
	metrics   *observe.Metrics
	log       *slog.Logger

	httpServer *http.Server
	certFile   string
	keyFile    string
}

// Option is a functional option for [New].
type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics replaces the default metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSynthesizer enables speech synthesis for replies. Without it the
// server is text-only and voice toggles have no audible effect.
func WithSynthesizer(synth *voice.Synthesizer) Option {
	return func(s *Server) { s.synth = synth }
}

// New assembles the server. companion and users are required; checkers are
// registered on /readyz.
func New(cfg Config, companion *chat.Companion, users memory.UserStore, checkers []health.Checker, opts ...Option) (*Server, error) {
	if companion == nil {
		return nil, errors.New("server: companion must not be nil")
	}
	if users == nil {
		return nil, errors.New("server: user store must not be nil")
	}

	s := &Server{
		companion: companion,
		users:     users,
		sessions:  NewSessionManager(cfg.SessionSecret),
		log:       slog.Default(),
		certFile:  cfg.CertFile,
		keyFile:   cfg.KeyFile,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.hub = NewHub(s.log)

	mux := http.NewServeMux()
	s.routes(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(s.metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// routes registers the API endpoints.
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("GET /api/session/status", s.handleSessionStatus)
	mux.HandleFunc("POST /api/session/end", s.handleSessionEnd)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/speech/transcript", s.handleSpeechTranscript)

	mux.HandleFunc("GET /api/avatar_state", s.handleAvatarStateGet)
	mux.HandleFunc("POST /api/avatar_state", s.handleAvatarStateSet)
	mux.HandleFunc("POST /api/toggle_voice", s.handleToggleVoice)
	mux.HandleFunc("POST /api/fullscreen/toggle", s.handleToggleFullscreen)

	mux.HandleFunc("POST /api/audio/play", s.handleAudioPlay)
	mux.HandleFunc("POST /api/audio/stop", s.handleAudioStop)
	mux.HandleFunc("POST /api/speech/start", s.handleSpeechStart)
	mux.HandleFunc("POST /api/speech/stop", s.handleSpeechStop)

	mux.HandleFunc("GET /ws", s.handleWebsocket)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tls := s.certFile != "" && s.keyFile != ""
		s.log.Info("http server listening", "addr", s.httpServer.Addr, "tls", tls)
		var err error
		if tls {
			err = s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
