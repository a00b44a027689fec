package proctor

import (
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	policyPath   string
	auditLogPath string
	clk          clock.Clock
	submitter    session.Submitter
	notify       session.Notifications
}

// WithPolicy sets the path to a policy YAML file. When unset, the default
// policy location is used, falling back to built-in defaults.
func WithPolicy(path string) Option {
	return func(c *clientConfig) { c.policyPath = path }
}

// WithAuditLog sets the path to the hash-chained audit log. When unset,
// no audit log is written.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditLogPath = path }
}

// WithClock overrides the time source. Useful for testing.
func WithClock(clk clock.Clock) Option {
	return func(c *clientConfig) { c.clk = clk }
}

// WithSubmitter sets the collaborator that receives the final answer
// snapshot when an attempt ends.
func WithSubmitter(sub session.Submitter) Option {
	return func(c *clientConfig) { c.submitter = sub }
}

// WithNotifications registers callbacks for warnings, countdown state,
// and terminal outcomes.
func WithNotifications(n session.Notifications) Option {
	return func(c *clientConfig) { c.notify = n }
}
