// Package trigger wakes the consumer process after an inbox entry has
// been persisted. Triggers are fire-and-forget: they carry no payload
// (the payload already lives in the inbox) and callers ignore failures
// beyond logging — an unreachable consumer discovers the entry on its
// own next launch.
package trigger

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

// DefaultActivationURL is the registered custom-scheme activation
// address the consumer owns the interpretation of.
const DefaultActivationURL = "shuttle://import"

// Trigger attempts to activate the consumer process.
type Trigger interface {
	Wake(ctx context.Context) error
}

// Scheme launches a custom-scheme activation address through the
// platform URL opener.
type Scheme struct {
	URL string
}

func (s Scheme) Wake(ctx context.Context) error {
	u := s.URL
	if u == "" {
		u = DefaultActivationURL
	}
	if err := exec.CommandContext(ctx, openCommand, u).Run(); err != nil {
		return fmt.Errorf("opening activation url %s: %w", u, err)
	}
	return nil
}

// HTTP pings a locally listening consumer's wake endpoint. The response
// body is irrelevant; only reachability matters.
type HTTP struct {
	Endpoint string
	Client   *http.Client
}

func (h HTTP) Wake(ctx context.Context) error {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("building wake request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("waking consumer: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("waking consumer: status %d", resp.StatusCode)
	}
	return nil
}

// Noop ignores wake requests. Used when handoff is disabled and in
// tests.
type Noop struct{}

func (Noop) Wake(context.Context) error { return nil }
