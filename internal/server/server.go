// Package server exposes the enforcement core to browser hosts over HTTP
// and WebSocket. The page layer binds raw platform events (visibility,
// focus, clipboard, fullscreen) to event kinds and forwards them here; all
// enforcement decisions stay on the server side, out of the candidate's
// reach.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Ryan-RCNR/proveit-proctor/internal/alert"
	"github.com/Ryan-RCNR/proveit-proctor/internal/audit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/ratelimit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
	"github.com/Ryan-RCNR/proveit-proctor/internal/store"
)

// Config holds gateway configuration.
type Config struct {
	Addr         string
	PolicyPath   string
	AuditLogPath string
	ArchivePath  string
}

// Server is the proctoring gateway. One Session per attempt, kept in
// memory until teardown; terminal state is archived to the store.
type Server struct {
	e   *echo.Echo
	cfg Config
	clk clock.Clock

	mu         sync.RWMutex
	pol        *policy.Config
	policyHash string
	dispatcher *alert.Dispatcher

	auditLog *audit.Log
	archive  *store.Store
	sessions sync.Map // session ID -> *handle
	metrics  *metrics
}

// handle pairs a live session with its WebSocket subscriber hub and the
// event rate limiter guarding it.
type handle struct {
	sess *session.Session
	hub  *hub

	limitMu sync.Mutex
	limiter *ratelimit.Tracker
	limits  ratelimit.Config
}

// throttled reports whether an event of the given kind must be dropped.
func (h *handle) throttled(kind string, now time.Time) (ratelimit.CheckResult, bool) {
	if h.limiter == nil {
		return ratelimit.CheckResult{}, false
	}
	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	return ratelimit.Evaluate(h.limiter, kind, h.limits, now)
}

// New creates the gateway with loaded policy, audit log, and archive.
func New(cfg Config) (*Server, error) {
	pol, hash, err := policy.LoadWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}

	clk := clock.System{}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.OpenWithClock(cfg.AuditLogPath, clk)
		if err != nil {
			return nil, err
		}
	}

	var archive *store.Store
	archivePath := cfg.ArchivePath
	if archivePath == "" {
		archivePath = pol.Archive
	}
	if archivePath != "" {
		archive, err = store.Open(archivePath)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		e:          echo.New(),
		cfg:        cfg,
		clk:        clk,
		pol:        pol,
		policyHash: hash,
		dispatcher: alert.NewDispatcher(pol.Alerts),
		auditLog:   auditLog,
		archive:    archive,
		metrics:    newMetrics(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())

	s.e.GET("/healthz", s.getHealth)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	s.e.POST("/api/v1/gate", s.postGate)

	v1 := s.e.Group("/api/v1/sessions")
	v1.POST("", s.postCreateSession)
	v1.GET("/:id", s.getSession)
	v1.GET("/:id/trail", s.getTrail)
	v1.POST("/:id/events", s.postEvent)
	v1.POST("/:id/fullscreen", s.postFullscreen)
	v1.POST("/:id/answers", s.postAnswer)
	v1.POST("/:id/submit", s.postSubmit)
	v1.GET("/:id/ws", s.getFeed)
}

// Handler exposes the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Serve starts the HTTP server. Blocks until Shutdown.
func (s *Server) Serve() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("gateway listening")
	err := s.e.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains connections and tears down every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Range(func(_, v any) bool {
		h := v.(*handle)
		h.sess.Teardown()
		h.hub.close()
		return true
	})
	return s.e.Shutdown(ctx)
}

// Close releases the audit log and archive.
func (s *Server) Close() error {
	var first error
	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			first = err
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ReloadPolicy atomically swaps the policy config. Live sessions keep the
// policy they started under; only new sessions pick up the change.
func (s *Server) ReloadPolicy() error {
	pol, hash, err := policy.LoadWithHash(s.cfg.PolicyPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pol = pol
	s.policyHash = hash
	s.dispatcher = alert.NewDispatcher(pol.Alerts)
	s.mu.Unlock()

	log.Info().Str("policy_hash", hash).Msg("policy reloaded")
	return nil
}

// policySnapshot returns the current policy and hash under the read lock.
func (s *Server) policySnapshot() (*policy.Config, string, *alert.Dispatcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol, s.policyHash, s.dispatcher
}

func (s *Server) lookup(id string) (*handle, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*handle), true
}

// archiveTerminal persists the finished attempt. Runs on the terminal
// callback; failures are logged, never surfaced to the candidate.
func (s *Server) archiveTerminal(h *handle, outcome, cause string) {
	if s.archive == nil {
		return
	}
	snap := h.sess.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.archive.FinishSession(ctx, h.sess.ID(), outcome, cause, s.clk.Now(), snap.Strikes, h.sess.Trail())
	if err != nil {
		log.Error().Err(err).Str("session", h.sess.ID()).Msg("archive terminal state failed")
	}
}

func (s *Server) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
