// Package proctor provides in-process enforcement of timed, single-attempt
// assessment sessions for Go quiz hosts. It runs the wall-clock deadline,
// tracks focus and fullscreen violations, forces submission on lockdown or
// timeout, and appends every decision to a hash-chained audit log.
//
// Usage:
//
//	p, err := proctor.New(proctor.WithPolicy("policy.yaml"), proctor.WithAuditLog("audit.jsonl"))
//	attempt, err := p.Start(ctx, proctor.Probe{
//	    ViewportWidth:  1920,
//	    ViewportHeight: 1080,
//	    Platform:       "Win32",
//	})
//	res, err := attempt.ReportEvent("tab_switch")
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/Ryan-RCNR/proveit-proctor/sdk/go/proctor.
package proctor
