package proctor

import (
	"fmt"

	"github.com/Ryan-RCNR/proveit-proctor/internal/gate"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

// Probe describes the device attempting to start an assessment.
type Probe = gate.Probe

// Result is the violation monitor's decision for one host event.
type Result = violation.Result

// Snapshot is a point-in-time view of an attempt.
type Snapshot = session.Snapshot

// Submission is the answer snapshot delivered when an attempt ends.
type Submission = session.Submission

// Notifications carries warning, countdown, and terminal callbacks.
type Notifications = session.Notifications

// Attempt outcomes.
const (
	OutcomeOpen        = session.OutcomeOpen
	OutcomeSubmitted   = session.OutcomeSubmitted
	OutcomeTimeExpired = session.OutcomeTimeExpired
	OutcomeForced      = session.OutcomeForced
)

// UnsupportedDeviceError is returned by Start when the entry gate
// rejects the device before any enforcement begins.
type UnsupportedDeviceError struct {
	Probe  Probe
	Reason string
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("proctor: unsupported device: %s", e.Reason)
}
