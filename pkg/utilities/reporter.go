package utilities

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/getsentry/sentry-go"
)

type ReporterConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
}

// ReporterConfigFromEnv reads error reporting settings from env vars.
func ReporterConfigFromEnv() (ReporterConfig, error) {
	var cfg ReporterConfig
	if err := env.Parse(&cfg); err != nil {
		return ReporterConfig{}, fmt.Errorf("parse reporter env: %w", err)
	}
	return cfg, nil
}

// Reporter forwards unexpected errors to Sentry. A nil or disabled Reporter
// drops everything.
type Reporter struct {
	enabled bool
}

// NewReporter initializes the Sentry client when a DSN is configured.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	if cfg.DSN == "" {
		return &Reporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return &Reporter{}, fmt.Errorf("sentry init: %w", err)
	}
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are forwarded.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Capture sends err to Sentry, using the hub bound to ctx when present.
func (r *Reporter) Capture(ctx context.Context, err error) {
	if !r.Enabled() || err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// Flush waits up to timeout for queued events.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
