package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
)

const submitTimeout = 10 * time.Second

// httpSubmitter delivers the final answer set and trail to the grading
// backend. The forced_by_timeout and forced_by_lockdown booleans ride
// along so the confirmation view can distinguish a lockdown from an
// ordinary timeout.
type httpSubmitter struct {
	url    string
	client *http.Client
}

// submitter returns the configured submission collaborator, or nil when no
// submit URL is set (simulations, local runs).
func (s *Server) submitter(pol *policy.Config) session.Submitter {
	if pol.SubmitURL == "" {
		return nil
	}
	return &httpSubmitter{
		url:    pol.SubmitURL,
		client: &http.Client{Timeout: submitTimeout},
	}
}

func (h *httpSubmitter) Submit(ctx context.Context, sub session.Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("submission rejected: status %d", resp.StatusCode)
	}

	log.Info().
		Str("session", sub.SessionID).
		Bool("forced_by_timeout", sub.ForcedByTimeout).
		Bool("forced_by_lockdown", sub.ForcedByLockdown).
		Msg("submission delivered")
	return nil
}
