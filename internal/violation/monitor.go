package violation

import (
	"fmt"
	"sync"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/countdown"
)

// Config tunes the monitor. Zero durations are replaced by defaults.
type Config struct {
	// StrikeLimit is the number of tolerated environmental violations;
	// the violation after the limit forces submission. nil selects
	// DefaultStrikeLimit; an explicit 0 forces on the first
	// environmental event.
	StrikeLimit *int
	// GracePeriod is how long after (re-)entering fullscreen events are
	// discarded entirely.
	GracePeriod time.Duration
	// ReentryCountdown is the window to return to fullscreen after an
	// exit before submission is forced.
	ReentryCountdown time.Duration
	// BlurSuppression discards window_blur events arriving this soon
	// after a fullscreen_exit, so one physical action is counted once.
	BlurSuppression time.Duration
	// WarningDisplay is the recommended display lifetime for transient
	// warnings.
	WarningDisplay time.Duration
}

// DefaultStrikeLimit is the environmental strike limit applied when the
// config leaves it unset.
const DefaultStrikeLimit = 1

// DefaultConfig returns the default enforcement tuning.
func DefaultConfig() Config {
	limit := DefaultStrikeLimit
	return Config{
		StrikeLimit:      &limit,
		GracePeriod:      2 * time.Second,
		ReentryCountdown: 10 * time.Second,
		BlurSuppression:  time.Second,
		WarningDisplay:   4 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StrikeLimit == nil {
		c.StrikeLimit = d.StrikeLimit
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.ReentryCountdown == 0 {
		c.ReentryCountdown = d.ReentryCountdown
	}
	if c.BlurSuppression == 0 {
		c.BlurSuppression = d.BlurSuppression
	}
	if c.WarningDisplay == 0 {
		c.WarningDisplay = d.WarningDisplay
	}
	return c
}

// Warning is a transient on-screen message with a recommended display
// lifetime after which it self-clears.
type Warning struct {
	Message string        `json:"message"`
	Display time.Duration `json:"display"`
}

// Callbacks receive monitor notifications. All callbacks fire synchronously
// from whichever call mutated the state; OnForced fires at most once per
// session.
type Callbacks struct {
	OnWarning         func(Warning)
	OnForced          func(cause string)
	OnCountdownStart  func(seconds int)
	OnCountdownCancel func()
}

// Decision says what the monitor did with one raw host event.
type Decision string

const (
	DecisionWarned             Decision = "warned"
	DecisionForced             Decision = "forced"
	DecisionDiscardedGrace     Decision = "discarded_grace"
	DecisionDiscardedSubmitted Decision = "discarded_submitted"
	DecisionSuppressedBlur     Decision = "suppressed_blur"
	DecisionUnknownKind        Decision = "unknown_kind"
)

// Forced-submission causes.
const (
	CauseInstant        = "instant violation"
	CauseStrikeLimit    = "environmental strike limit exceeded"
	CauseReentryExpired = "fullscreen re-entry window expired"
)

// Result describes the disposition of one raw event.
type Result struct {
	Kind      Kind       `json:"kind"`
	Decision  Decision   `json:"decision"`
	Violation *Violation `json:"violation,omitempty"`
	Strikes   int        `json:"strikes"`
	Message   string     `json:"message,omitempty"`
}

// State is an explicit snapshot of the monitor, suitable for serialization
// and assertion in tests.
type State struct {
	StrikeCount     int        `json:"environmental_strike_count"`
	InGracePeriod   bool       `json:"in_grace_period"`
	GraceUntil      time.Time  `json:"grace_until"`
	ReentryDeadline *time.Time `json:"reentry_deadline,omitempty"`
	Submitted       bool       `json:"submitted"`
	ForcedCause     string     `json:"forced_cause,omitempty"`
}

// Monitor classifies host-reported events and escalates to forced
// submission when policy thresholds are crossed. All transitions happen
// synchronously inside the call that delivers the event or tick; the
// submitted latch guarantees at-most-once forced submission even for late
// timer fires.
type Monitor struct {
	clk   clock.Clock
	cfg   Config
	cb    Callbacks
	trail *Trail

	mu          sync.Mutex
	strikes     int
	graceUntil  time.Time
	lastFSExit  time.Time
	reentry     *countdown.Countdown
	reentryEnds time.Time
	submitted   bool
	forcedCause string
}

// NewMonitor creates a monitor with its own empty trail. Call Start once
// the secure viewing context has been engaged.
func NewMonitor(clk clock.Clock, cfg Config, cb Callbacks) *Monitor {
	return &Monitor{
		clk:   clk,
		cfg:   cfg.withDefaults(),
		cb:    cb,
		trail: NewTrail(),
	}
}

// Trail returns the session's audit trail.
func (m *Monitor) Trail() *Trail { return m.trail }

// Start opens the initial grace period. The fullscreen-request dialog
// itself causes focus and visibility churn; nothing is recorded until the
// grace window closes.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.graceUntil = m.clk.Now().Add(m.cfg.GracePeriod)
	m.mu.Unlock()
}

// HandleEvent processes one raw host-reported event kind and returns its
// disposition. Unknown kinds are discarded, never an error: a best-effort
// proctoring signal beats an aborted session.
func (m *Monitor) HandleEvent(rawKind string) Result {
	now := m.clk.Now()

	kind, ok := ParseKind(rawKind)
	if !ok {
		return Result{Kind: Kind(rawKind), Decision: DecisionUnknownKind}
	}

	m.mu.Lock()

	if m.submitted {
		m.mu.Unlock()
		return Result{Kind: kind, Decision: DecisionDiscardedSubmitted}
	}
	if now.Before(m.graceUntil) {
		m.mu.Unlock()
		return Result{Kind: kind, Decision: DecisionDiscardedGrace}
	}
	if kind == KindWindowBlur && !m.lastFSExit.IsZero() && now.Sub(m.lastFSExit) < m.cfg.BlurSuppression {
		m.mu.Unlock()
		return Result{Kind: kind, Decision: DecisionSuppressedBlur}
	}

	v := m.trail.Append(kind, now)
	if kind == KindFullscreenExit {
		m.lastFSExit = now
	}

	if kind.Class() == ClassInstant {
		// Instant violations flip the latch in the same logical step
		// they are recorded. No countdown, no grace.
		m.submitted = true
		m.forcedCause = fmt.Sprintf("%s: %s", CauseInstant, kind)
		cd := m.clearCountdownLocked()
		cause := m.forcedCause
		m.mu.Unlock()

		if cd != nil {
			cd.Cancel()
		}
		m.fireForced(cause)
		return Result{Kind: kind, Decision: DecisionForced, Violation: &v, Message: cause}
	}

	m.strikes++
	strikes := m.strikes

	if strikes > *m.cfg.StrikeLimit {
		// Strike two (at the default limit) is a pattern, not an
		// accident. Escalates immediately, with no second countdown.
		m.submitted = true
		m.forcedCause = CauseStrikeLimit
		cd := m.clearCountdownLocked()
		m.mu.Unlock()

		if cd != nil {
			cd.Cancel()
		}
		m.fireForced(CauseStrikeLimit)
		return Result{Kind: kind, Decision: DecisionForced, Violation: &v, Strikes: strikes, Message: CauseStrikeLimit}
	}

	warn := Warning{
		Message: fmt.Sprintf("%s: this is a recorded violation; one more will end your attempt", kind.Description()),
		Display: m.cfg.WarningDisplay,
	}
	startCountdown := kind == KindFullscreenExit && m.reentry == nil
	var cdSeconds int
	if startCountdown {
		m.startCountdownLocked(now)
		cdSeconds = countdown.Seconds(now, m.cfg.ReentryCountdown, now)
		warn.Message = fmt.Sprintf("%s: return within %d seconds or your quiz will be submitted", kind.Description(), cdSeconds)
	}
	m.mu.Unlock()

	if m.cb.OnWarning != nil {
		m.cb.OnWarning(warn)
	}
	if startCountdown && m.cb.OnCountdownStart != nil {
		m.cb.OnCountdownStart(cdSeconds)
	}
	return Result{Kind: kind, Decision: DecisionWarned, Violation: &v, Strikes: strikes, Message: warn.Message}
}

// FullscreenReentered cancels any running re-entry countdown and opens a
// new grace period to absorb the re-entry's own side-effect events. The
// strike counter is not reset.
func (m *Monitor) FullscreenReentered() {
	m.mu.Lock()
	if m.submitted {
		m.mu.Unlock()
		return
	}
	cd := m.clearCountdownLocked()
	m.graceUntil = m.clk.Now().Add(m.cfg.GracePeriod)
	m.mu.Unlock()

	if cd != nil {
		cd.Cancel()
		if m.cb.OnCountdownCancel != nil {
			m.cb.OnCountdownCancel()
		}
	}
}

// FullscreenDenied handles a denied or failed fullscreen request: the
// candidate is outside the secure context, so the re-entry countdown starts
// immediately. Any open grace window closes with it; grace absorbs the
// churn of entering fullscreen, and a denial means that never happened.
// Nothing is recorded in the trail.
func (m *Monitor) FullscreenDenied() {
	now := m.clk.Now()

	m.mu.Lock()
	if m.submitted || m.reentry != nil {
		m.mu.Unlock()
		return
	}
	m.graceUntil = now
	m.startCountdownLocked(now)
	m.mu.Unlock()

	if m.cb.OnCountdownStart != nil {
		m.cb.OnCountdownStart(countdown.Seconds(now, m.cfg.ReentryCountdown, now))
	}
}

// TickCountdown advances the re-entry countdown if one is running and
// returns its remaining seconds. Firing at or after true expiry forces
// submission through the same at-most-once latch as every other trigger.
func (m *Monitor) TickCountdown() (int, bool) {
	m.mu.Lock()
	cd := m.reentry
	m.mu.Unlock()
	if cd == nil {
		return 0, false
	}
	return cd.Tick(), true
}

// CountdownRemaining returns the re-entry countdown value while one is
// active. The second return is false when no countdown is running.
func (m *Monitor) CountdownRemaining() (int, bool) {
	m.mu.Lock()
	cd := m.reentry
	m.mu.Unlock()
	if cd == nil {
		return 0, false
	}
	return cd.Remaining(), true
}

// Submitted reports whether the forced-submission latch has flipped.
func (m *Monitor) Submitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted
}

// ForcedCause returns the reason submission was forced, or "".
func (m *Monitor) ForcedCause() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forcedCause
}

// State returns an explicit snapshot of the monitor state.
func (m *Monitor) State() State {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		StrikeCount:   m.strikes,
		InGracePeriod: now.Before(m.graceUntil),
		GraceUntil:    m.graceUntil,
		Submitted:     m.submitted,
		ForcedCause:   m.forcedCause,
	}
	if m.reentry != nil {
		ends := m.reentryEnds
		s.ReentryDeadline = &ends
	}
	return s
}

// Teardown cancels the re-entry countdown. Late ticks after teardown are
// no-ops thanks to the countdown's own cancel latch.
func (m *Monitor) Teardown() {
	m.mu.Lock()
	cd := m.clearCountdownLocked()
	m.mu.Unlock()
	if cd != nil {
		cd.Cancel()
	}
}

func (m *Monitor) startCountdownLocked(now time.Time) {
	m.reentry = countdown.New(m.clk, now, m.cfg.ReentryCountdown, func() {
		m.forceSubmit(CauseReentryExpired)
	})
	m.reentryEnds = now.Add(m.cfg.ReentryCountdown)
}

// clearCountdownLocked detaches the countdown and returns it so the caller
// can cancel outside the lock.
func (m *Monitor) clearCountdownLocked() *countdown.Countdown {
	cd := m.reentry
	m.reentry = nil
	m.reentryEnds = time.Time{}
	return cd
}

// forceSubmit flips the latch. Any duplicate or late trigger after the
// latch is set is a no-op, not an error.
func (m *Monitor) forceSubmit(cause string) {
	m.mu.Lock()
	if m.submitted {
		m.mu.Unlock()
		return
	}
	m.submitted = true
	m.forcedCause = cause
	cd := m.clearCountdownLocked()
	m.mu.Unlock()

	if cd != nil {
		cd.Cancel()
	}
	m.fireForced(cause)
}

func (m *Monitor) fireForced(cause string) {
	if m.cb.OnForced != nil {
		m.cb.OnForced(cause)
	}
}
