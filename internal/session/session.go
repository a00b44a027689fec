// Package session orchestrates one proctored quiz attempt: the entry gate,
// the deadline tracker, the violation monitor, the audit log, and the
// submission collaborator, wired so that exactly one terminal signal fires
// per attempt.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ryan-RCNR/proveit-proctor/internal/alert"
	"github.com/Ryan-RCNR/proveit-proctor/internal/audit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/deadline"
	"github.com/Ryan-RCNR/proveit-proctor/internal/gate"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

// Outcome is the terminal state of an attempt.
const (
	OutcomeOpen        = "open"
	OutcomeSubmitted   = "submitted"
	OutcomeTimeExpired = "time_expired"
	OutcomeForced      = "forced_submission"
)

// Terminal causes carried end-to-end so the confirmation view can show a
// different message for a lockdown than for an ordinary timeout.
const (
	CauseTimeout  = "timeout"
	CauseLockdown = "lockdown"
)

// ErrUnsupportedDevice is returned by Begin when the entry gate classifies
// the device as unable to hold lockdown mode.
var ErrUnsupportedDevice = errors.New("session: device unsupported for lockdown")

// ErrNotRunning is returned by event-delivery methods before Begin or
// after Teardown.
var ErrNotRunning = errors.New("session: not running")

// Submission is the handoff to the submission collaborator.
type Submission struct {
	SessionID        string                `json:"session_id"`
	Answers          map[string]string     `json:"answers"`
	Trail            []violation.Violation `json:"trail"`
	ForcedByTimeout  bool                  `json:"forced_by_timeout"`
	ForcedByLockdown bool                  `json:"forced_by_lockdown"`
	Cause            string                `json:"cause,omitempty"`
}

// Submitter delivers the answer set and audit trail when a session ends.
// It is invoked at most once per session.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, sub Submission) error

func (f SubmitterFunc) Submit(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}

// Options configures a Session.
type Options struct {
	Clock      clock.Clock
	Policy     *policy.Config
	PolicyHash string
	// Log receives every observable step of the attempt. Optional.
	Log *audit.Log
	// Alerts fans events out to instructor webhooks. Optional (nil skips).
	Alerts *alert.Dispatcher
	// Submitter receives the final answer set. Optional.
	Submitter Submitter
	// Notify receives display-oriented callbacks for the hosting view.
	Notify Notifications
	// ManualPoll skips the background polling loops; the caller drives
	// Poll itself. Used by simulations running on a fake clock.
	ManualPoll bool
}

// Notifications are display-oriented callbacks forwarded to the hosting
// view. All fire synchronously with the transition that caused them.
type Notifications struct {
	OnWarning         func(violation.Warning)
	OnDeadlineWarning func(deadline.Warning)
	OnCountdownStart  func(seconds int)
	OnCountdownCancel func()
	// OnTerminal fires exactly once with the terminal outcome and cause.
	OnTerminal func(outcome, cause string)
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID        string          `json:"session_id"`
	Outcome          string          `json:"outcome"`
	Cause            string          `json:"cause,omitempty"`
	RemainingSeconds int             `json:"remaining_seconds"`
	CountdownSeconds *int            `json:"countdown_seconds,omitempty"`
	Strikes          int             `json:"strikes"`
	Monitor          violation.State `json:"monitor"`
}

// Session drives one attempt from gate check to terminal signal.
type Session struct {
	id     string
	clk    clock.Clock
	pol    *policy.Config
	hash   string
	alog   *audit.Log
	alerts *alert.Dispatcher
	submit Submitter
	notify Notifications
	manual bool

	mu       sync.Mutex
	outcome  string
	cause    string
	answers  map[string]string
	tracker  *deadline.Tracker
	monitor  *violation.Monitor
	cancel   context.CancelFunc
	tornDown bool
}

// New creates a session. Enforcement does not begin until Begin.
func New(opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	pol := opts.Policy
	if pol == nil {
		pol = policy.Default()
	}
	return &Session{
		id:      uuid.NewString(),
		clk:     clk,
		pol:     pol,
		hash:    opts.PolicyHash,
		alog:    opts.Log,
		alerts:  opts.Alerts,
		submit:  opts.Submitter,
		notify:  opts.Notify,
		manual:  opts.ManualPoll,
		outcome: OutcomeOpen,
		answers: make(map[string]string),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Begin runs the entry gate and, if the device is supported, starts
// enforcement: the deadline tracker anchored at now, the violation monitor
// with its initial grace period, and both polling loops. The gate is
// evaluated exactly once; an unsupported device never engages fullscreen
// or starts tracking.
func (s *Session) Begin(ctx context.Context, probe gate.Probe) (gate.Result, error) {
	now := s.clk.Now()

	gateCfg := gate.Config{
		MinWidth:         s.pol.Gate.MinWidth,
		MinHeight:        s.pol.Gate.MinHeight,
		MobileSignatures: s.pol.Gate.MobileSignatures,
	}
	res := gate.Check(probe, gateCfg)

	s.record(audit.Entry{
		Timestamp:  now.UTC().Format(audit.TimestampFormat),
		Type:       audit.TypeSessionStart,
		PolicyHash: s.hash,
	})
	s.record(audit.Entry{
		Type:    audit.TypeGateResult,
		Message: gateMessage(res),
	})

	if !res.Supported {
		log.Warn().Str("session", s.id).Str("reason", res.Reason).Msg("device rejected by entry gate")
		return res, ErrUnsupportedDevice
	}

	s.mu.Lock()
	s.tracker = deadline.New(
		s.clk, now, s.pol.Quiz.DurationMinutes, s.pol.Quiz.Warnings,
		s.onDeadlineWarning, s.onTimeExpired,
	)
	strikeLimit := s.pol.Enforcement.StrikeLimit
	s.monitor = violation.NewMonitor(s.clk, violation.Config{
		StrikeLimit:      &strikeLimit,
		GracePeriod:      s.pol.Enforcement.GracePeriod.Std(),
		ReentryCountdown: s.pol.Enforcement.ReentryCountdown.Std(),
		BlurSuppression:  s.pol.Enforcement.BlurSuppression.Std(),
		WarningDisplay:   s.pol.Enforcement.WarningDisplay.Std(),
	}, violation.Callbacks{
		OnWarning:         s.onMonitorWarning,
		OnForced:          s.onForced,
		OnCountdownStart:  s.onCountdownStart,
		OnCountdownCancel: s.onCountdownCancel,
	})
	s.monitor.Start()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	tracker := s.tracker
	s.mu.Unlock()

	if !s.manual {
		go tracker.Run(runCtx, s.pol.Quiz.DeadlinePoll.Std())
		go s.pollCountdown(runCtx, s.pol.Enforcement.CountdownPoll.Std())
	}

	log.Info().
		Str("session", s.id).
		Int("duration_minutes", s.pol.Quiz.DurationMinutes).
		Msg("session started")
	return res, nil
}

// HandleEvent delivers one raw host-reported event. Every raw event is
// recorded in the audit log with its disposition, including events that
// arrive after submission but before teardown.
func (s *Session) HandleEvent(rawKind string) (violation.Result, error) {
	s.mu.Lock()
	m := s.monitor
	torn := s.tornDown
	s.mu.Unlock()
	if m == nil || torn {
		return violation.Result{}, ErrNotRunning
	}

	res := m.HandleEvent(rawKind)

	entry := audit.Entry{
		Type:     audit.TypeHostEvent,
		Kind:     string(res.Kind),
		Decision: string(res.Decision),
		Strikes:  res.Strikes,
		Message:  res.Message,
	}
	if res.Kind.Valid() {
		entry.Class = string(res.Kind.Class())
	}
	if res.Violation != nil {
		entry.Occurrence = res.Violation.OccurrenceIndex
	}
	s.record(entry)

	if res.Violation != nil && s.alerts != nil {
		s.alerts.Dispatch(alert.Event{
			Timestamp:  s.clk.Now().UTC().Format(audit.TimestampFormat),
			SessionID:  s.id,
			Type:       alert.EventViolation,
			Kind:       string(res.Kind),
			Class:      string(res.Kind.Class()),
			Occurrence: res.Violation.OccurrenceIndex,
			Strikes:    res.Strikes,
			Message:    res.Message,
			PolicyHash: s.hash,
		})
	}
	return res, nil
}

// FullscreenEntered reports that the host (re-)engaged the secure viewing
// context. Cancels any running re-entry countdown and opens a grace period.
func (s *Session) FullscreenEntered() error {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m == nil {
		return ErrNotRunning
	}
	m.FullscreenReentered()
	s.record(audit.Entry{Type: audit.TypeFullscreenEnter})
	return nil
}

// FullscreenDenied reports that the fullscreen request failed or was
// denied. Not a fatal error: the candidate is simply outside the secure
// context, so the re-entry countdown starts.
func (s *Session) FullscreenDenied() error {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m == nil {
		return ErrNotRunning
	}
	m.FullscreenDenied()
	s.record(audit.Entry{Type: audit.TypeFullscreenDenied})
	return nil
}

// SetAnswer stores the latest answer for a question, mirroring the host's
// local cache so a forced submission always carries current work.
func (s *Session) SetAnswer(questionID, answer string) {
	s.mu.Lock()
	s.answers[questionID] = answer
	s.mu.Unlock()
}

// SubmitAnswers is the candidate-initiated normal completion path.
func (s *Session) SubmitAnswers(ctx context.Context, answers map[string]string) error {
	s.mu.Lock()
	for k, v := range answers {
		s.answers[k] = v
	}
	s.mu.Unlock()
	return s.finish(ctx, OutcomeSubmitted, "")
}

// Snapshot returns the externally visible session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SessionID: s.id,
		Outcome:   s.outcome,
		Cause:     s.cause,
	}
	tracker, monitor := s.tracker, s.monitor
	s.mu.Unlock()

	if tracker != nil {
		snap.RemainingSeconds = tracker.Remaining()
	}
	if monitor != nil {
		st := monitor.State()
		snap.Monitor = st
		snap.Strikes = st.StrikeCount
		if secs, ok := monitor.CountdownRemaining(); ok {
			snap.CountdownSeconds = &secs
		}
	}
	return snap
}

// Trail returns a stable snapshot of the violation audit trail.
func (s *Session) Trail() []violation.Violation {
	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Trail().Snapshot()
}

// Outcome returns the terminal outcome, or "open".
func (s *Session) Outcome() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.cause
}

// Teardown stops all timers. Safe to call more than once; late timer fires
// after teardown are absorbed by the submitted latch.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	cancel := s.cancel
	m := s.monitor
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if m != nil {
		m.Teardown()
	}
	log.Debug().Str("session", s.id).Msg("session torn down")
}

// Poll runs one deadline check and one re-entry countdown check. The
// background loops do this on their own cadence; simulations drive it
// manually against a fake clock.
func (s *Session) Poll() {
	s.mu.Lock()
	tracker, monitor := s.tracker, s.monitor
	s.mu.Unlock()
	if tracker != nil {
		tracker.Tick()
	}
	if monitor != nil {
		monitor.TickCountdown()
	}
}

func (s *Session) pollCountdown(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			m := s.monitor
			s.mu.Unlock()
			if m != nil {
				m.TickCountdown()
			}
		}
	}
}

func (s *Session) onDeadlineWarning(w deadline.Warning) {
	s.record(audit.Entry{
		Type:      audit.TypeWarning,
		Message:   w.Message,
		Remaining: w.Seconds,
	})
	if s.alerts != nil {
		s.alerts.Dispatch(alert.Event{
			Timestamp:  s.clk.Now().UTC().Format(audit.TimestampFormat),
			SessionID:  s.id,
			Type:       alert.EventWarning,
			Message:    w.Message,
			PolicyHash: s.hash,
		})
	}
	if s.notify.OnDeadlineWarning != nil {
		s.notify.OnDeadlineWarning(w)
	}
}

func (s *Session) onMonitorWarning(w violation.Warning) {
	s.record(audit.Entry{
		Type:    audit.TypeWarning,
		Message: w.Message,
	})
	if s.notify.OnWarning != nil {
		s.notify.OnWarning(w)
	}
}

func (s *Session) onCountdownStart(seconds int) {
	s.record(audit.Entry{
		Type:      audit.TypeCountdownStart,
		Remaining: seconds,
	})
	if s.notify.OnCountdownStart != nil {
		s.notify.OnCountdownStart(seconds)
	}
}

func (s *Session) onCountdownCancel() {
	s.record(audit.Entry{Type: audit.TypeCountdownCancel})
	if s.notify.OnCountdownCancel != nil {
		s.notify.OnCountdownCancel()
	}
}

func (s *Session) onTimeExpired() {
	if err := s.finish(context.Background(), OutcomeTimeExpired, CauseTimeout); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("submission after time expiry failed")
	}
}

func (s *Session) onForced(_ string) {
	if err := s.finish(context.Background(), OutcomeForced, CauseLockdown); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("forced submission failed")
	}
}

// finish latches the terminal outcome and invokes the submission
// collaborator exactly once. Later terminal triggers are no-ops.
func (s *Session) finish(ctx context.Context, outcome, cause string) error {
	s.mu.Lock()
	if s.outcome != OutcomeOpen {
		s.mu.Unlock()
		return nil
	}
	s.outcome = outcome
	s.cause = cause
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	m := s.monitor
	s.mu.Unlock()

	var trail []violation.Violation
	detail := ""
	if m != nil {
		trail = m.Trail().Snapshot()
		detail = m.ForcedCause()
	}

	entry := audit.Entry{Cause: cause}
	switch outcome {
	case OutcomeTimeExpired:
		entry.Type = audit.TypeTimeExpired
		entry.Message = "time expired"
	case OutcomeForced:
		entry.Type = audit.TypeForced
		entry.Message = detail
	default:
		entry.Type = audit.TypeSubmitted
	}
	s.record(entry)

	if s.alerts != nil {
		eventType := alert.EventForcedSubmission
		if outcome == OutcomeTimeExpired {
			eventType = alert.EventTimeExpired
		}
		if outcome != OutcomeSubmitted {
			s.alerts.Dispatch(alert.Event{
				Timestamp:  s.clk.Now().UTC().Format(audit.TimestampFormat),
				SessionID:  s.id,
				Type:       eventType,
				Message:    entry.Message,
				Cause:      cause,
				PolicyHash: s.hash,
			})
		}
	}

	if s.notify.OnTerminal != nil {
		s.notify.OnTerminal(outcome, cause)
	}

	log.Info().
		Str("session", s.id).
		Str("outcome", outcome).
		Str("cause", cause).
		Int("violations", len(trail)).
		Msg("session ended")

	if s.submit == nil {
		return nil
	}
	return s.submit.Submit(ctx, Submission{
		SessionID:        s.id,
		Answers:          answers,
		Trail:            trail,
		ForcedByTimeout:  outcome == OutcomeTimeExpired,
		ForcedByLockdown: outcome == OutcomeForced,
		Cause:            cause,
	})
}

// record appends an audit entry, stamping the session ID and policy hash.
// Audit failures are logged and swallowed: a lost log line must never
// break session navigation.
func (s *Session) record(e audit.Entry) {
	if s.alog == nil {
		return
	}
	e.SessionID = s.id
	if e.Timestamp == "" {
		e.Timestamp = s.clk.Now().UTC().Format(audit.TimestampFormat)
	}
	if e.PolicyHash == "" && e.Type == audit.TypeSessionStart {
		e.PolicyHash = s.hash
	}
	if err := s.alog.Record(e); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("audit record failed")
	}
}

func gateMessage(r gate.Result) string {
	if r.Supported {
		return "device supported"
	}
	return r.Reason
}
