package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/Ryan-RCNR/proveit-proctor/internal/deadline"
	"github.com/Ryan-RCNR/proveit-proctor/internal/gate"
	"github.com/Ryan-RCNR/proveit-proctor/internal/ratelimit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
	"github.com/Ryan-RCNR/proveit-proctor/internal/store"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

type createSessionRequest struct {
	Probe gate.Probe `json:"probe"`
}

type createSessionResponse struct {
	SessionID        string `json:"session_id"`
	Supported        bool   `json:"supported"`
	Reason           string `json:"reason,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
}

type eventRequest struct {
	Kind string `json:"kind"`
}

type fullscreenRequest struct {
	Entered bool `json:"entered"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

// postGate runs the device check without creating a session, so the host
// can show the blocking screen before asking for an access code.
func (s *Server) postGate(c echo.Context) error {
	var probe gate.Probe
	if err := c.Bind(&probe); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid probe")
	}
	pol, _, _ := s.policySnapshot()
	res := gate.Check(probe, gate.Config{
		MinWidth:         pol.Gate.MinWidth,
		MinHeight:        pol.Gate.MinHeight,
		MobileSignatures: pol.Gate.MobileSignatures,
	})
	return c.JSON(http.StatusOK, res)
}

func (s *Server) postCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pol, hash, dispatcher := s.policySnapshot()

	h := &handle{hub: newHub()}
	if rl := pol.Enforcement.EventRateLimit; rl.MaxEvents > 0 {
		h.limiter = ratelimit.NewTracker(s.clk.Now())
		h.limits = ratelimit.Config{"*": {MaxEvents: rl.MaxEvents, Window: rl.Window.Std()}}
	}
	sess := session.New(session.Options{
		Policy:     pol,
		PolicyHash: hash,
		Log:        s.auditLog,
		Alerts:     dispatcher,
		Submitter:  s.submitter(pol),
		Notify:     s.notifications(h),
	})
	h.sess = sess

	res, err := sess.Begin(context.Background(), req.Probe)
	if errors.Is(err, session.ErrUnsupportedDevice) {
		return c.JSON(http.StatusUnprocessableEntity, createSessionResponse{
			SessionID: sess.ID(),
			Supported: false,
			Reason:    res.Reason,
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session start failed")
	}

	s.sessions.Store(sess.ID(), h)
	s.metrics.sessionsStarted.Inc()
	s.metrics.activeSessions.Inc()

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.archive.CreateSession(ctx, store.SessionRecord{
			ID:              sess.ID(),
			StartedAt:       s.clk.Now(),
			DurationMinutes: pol.Quiz.DurationMinutes,
			PolicyHash:      hash,
		})
		if err != nil {
			log.Error().Err(err).Str("session", sess.ID()).Msg("archive session start failed")
		}
	}

	snap := sess.Snapshot()
	return c.JSON(http.StatusCreated, createSessionResponse{
		SessionID:        sess.ID(),
		Supported:        true,
		RemainingSeconds: snap.RemainingSeconds,
		DurationMinutes:  pol.Quiz.DurationMinutes,
	})
}

func (s *Server) getSession(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	return c.JSON(http.StatusOK, h.sess.Snapshot())
}

func (s *Server) getTrail(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	trail := h.sess.Trail()
	if trail == nil {
		trail = []violation.Violation{}
	}
	return c.JSON(http.StatusOK, trail)
}

func (s *Server) postEvent(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil || req.Kind == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing event kind")
	}

	if res, exceeded := h.throttled(req.Kind, s.clk.Now()); exceeded {
		log.Warn().Str("session", h.sess.ID()).Str("kind", req.Kind).Msg(res.Reason)
		s.metrics.eventsThrottled.WithLabelValues(req.Kind).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, res.Reason)
	}

	res, err := h.sess.HandleEvent(req.Kind)
	if errors.Is(err, session.ErrNotRunning) {
		return echo.NewHTTPError(http.StatusConflict, "session is not running")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "event handling failed")
	}

	s.metrics.hostEvents.WithLabelValues(string(res.Kind), string(res.Decision)).Inc()
	return c.JSON(http.StatusOK, res)
}

func (s *Server) postFullscreen(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	var req fullscreenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var err error
	if req.Entered {
		err = h.sess.FullscreenEntered()
	} else {
		err = h.sess.FullscreenDenied()
	}
	if errors.Is(err, session.ErrNotRunning) {
		return echo.NewHTTPError(http.StatusConflict, "session is not running")
	}
	return c.JSON(http.StatusOK, h.sess.Snapshot())
}

func (s *Server) postAnswer(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil || req.QuestionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing question_id")
	}
	h.sess.SetAnswer(req.QuestionID, req.Answer)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) postSubmit(c echo.Context) error {
	h, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.sess.SubmitAnswers(c.Request().Context(), req.Answers); err != nil {
		log.Error().Err(err).Str("session", h.sess.ID()).Msg("submission delivery failed")
	}
	outcome, cause := h.sess.Outcome()
	return c.JSON(http.StatusOK, map[string]string{
		"outcome": outcome,
		"cause":   cause,
	})
}

// notifications wires session callbacks into the WebSocket hub, metrics,
// and the archive.
func (s *Server) notifications(h *handle) session.Notifications {
	return session.Notifications{
		OnWarning: func(w violation.Warning) {
			h.hub.broadcast(feedMessage{
				Type:           "warning",
				Message:        w.Message,
				DisplaySeconds: int(w.Display.Seconds()),
			})
		},
		OnDeadlineWarning: func(w deadline.Warning) {
			h.hub.broadcast(feedMessage{
				Type:             "deadline_warning",
				Message:          w.Message,
				RemainingSeconds: w.Seconds,
			})
		},
		OnCountdownStart: func(seconds int) {
			h.hub.broadcast(feedMessage{
				Type:             "countdown",
				CountdownSeconds: &seconds,
			})
		},
		OnCountdownCancel: func() {
			h.hub.broadcast(feedMessage{Type: "countdown_cancelled"})
		},
		OnTerminal: func(outcome, cause string) {
			s.metrics.terminalOutcomes.WithLabelValues(outcome, cause).Inc()
			s.metrics.activeSessions.Dec()
			s.archiveTerminal(h, outcome, cause)
			h.hub.broadcast(feedMessage{
				Type:    "terminal",
				Outcome: outcome,
				Cause:   cause,
			})
		},
	}
}
