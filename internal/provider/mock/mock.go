// Package mock implements the provider interfaces in process with an
// artificial latency. It is the default for development and tests.
package mock

import (
	"context"
	"time"
)

// Config tunes the mock providers.
type Config struct {
	// Delay is waited before every call returns.
	Delay time.Duration
	// PaymentBaseURL prefixes the redirect URL of payment sessions.
	PaymentBaseURL string
	// TrackingBaseURL prefixes tracking links.
	TrackingBaseURL string
	// TrackingStep is the simulated time between two carrier scans.
	TrackingStep time.Duration
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Delay:           300 * time.Millisecond,
		PaymentBaseURL:  "http://localhost:8080/odeme/mock",
		TrackingBaseURL: "https://kargo.example.com/takip",
		TrackingStep:    6 * time.Hour,
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
