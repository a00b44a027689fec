package proctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ryan-RCNR/proveit-proctor/internal/audit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

// Client holds the enforcement configuration shared by attempts.
// Thread-safe for concurrent attempt starts.
type Client struct {
	cfg        clientConfig
	pol        *policy.Config
	policyHash string
	alog       *audit.Log
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{clk: clock.System{}}
	for _, o := range opts {
		o(&cfg)
	}

	pol, hash, err := policy.LoadWithHash(cfg.policyPath)
	if err != nil {
		return nil, fmt.Errorf("proctor: failed to load policy: %w", err)
	}

	var alog *audit.Log
	if cfg.auditLogPath != "" {
		alog, err = audit.OpenWithClock(cfg.auditLogPath, cfg.clk)
		if err != nil {
			return nil, fmt.Errorf("proctor: failed to open audit log: %w", err)
		}
	}

	return &Client{
		cfg:        cfg,
		pol:        pol,
		policyHash: hash,
		alog:       alog,
	}, nil
}

// Close releases the audit log. Running attempts keep their state but
// stop recording.
func (c *Client) Close() error {
	if c.alog != nil {
		return c.alog.Close()
	}
	return nil
}

// Attempt is one student's timed assessment run.
type Attempt struct {
	sess *session.Session
}

// Start gates the device and, if supported, begins an attempt with the
// deadline and violation monitor running. Returns *UnsupportedDeviceError
// when the gate rejects the device.
func (c *Client) Start(ctx context.Context, probe Probe) (*Attempt, error) {
	sess := session.New(session.Options{
		Clock:      c.cfg.clk,
		Policy:     c.pol,
		PolicyHash: c.policyHash,
		Log:        c.alog,
		Submitter:  c.cfg.submitter,
		Notify:     c.cfg.notify,
	})

	res, err := sess.Begin(ctx, probe)
	if errors.Is(err, session.ErrUnsupportedDevice) {
		return nil, &UnsupportedDeviceError{Probe: probe, Reason: res.Reason}
	}
	if err != nil {
		return nil, fmt.Errorf("proctor: failed to start attempt: %w", err)
	}
	return &Attempt{sess: sess}, nil
}

// ID returns the attempt's session identifier.
func (a *Attempt) ID() string { return a.sess.ID() }

// ReportEvent feeds one host event (focus loss, copy attempt, devtools)
// through the violation monitor and returns its decision.
func (a *Attempt) ReportEvent(kind string) (Result, error) {
	return a.sess.HandleEvent(kind)
}

// FullscreenEntered reports a successful fullscreen re-entry, cancelling
// any running re-entry countdown.
func (a *Attempt) FullscreenEntered() error {
	return a.sess.FullscreenEntered()
}

// FullscreenDenied reports a refused fullscreen prompt, starting the
// re-entry countdown.
func (a *Attempt) FullscreenDenied() error {
	return a.sess.FullscreenDenied()
}

// SetAnswer records an answer so forced submissions carry it.
func (a *Attempt) SetAnswer(questionID, answer string) {
	a.sess.SetAnswer(questionID, answer)
}

// Submit ends the attempt normally with the given answers merged over
// any recorded ones.
func (a *Attempt) Submit(ctx context.Context, answers map[string]string) error {
	return a.sess.SubmitAnswers(ctx, answers)
}

// Snapshot returns the attempt's current enforcement state.
func (a *Attempt) Snapshot() Snapshot {
	return a.sess.Snapshot()
}

// Trail returns the violations recorded so far, in order.
func (a *Attempt) Trail() []violation.Violation {
	return a.sess.Trail()
}

// Outcome returns the attempt's terminal outcome and cause, or the open
// outcome while it is still running.
func (a *Attempt) Outcome() (string, string) {
	return a.sess.Outcome()
}

// Teardown stops enforcement without recording an outcome. Safe to call
// more than once.
func (a *Attempt) Teardown() {
	a.sess.Teardown()
}
