package errors

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/budget-bot/pkg/config"
)

// InitSentry configures the global Sentry client. The returned function
// flushes buffered events and is safe to call when Sentry is disabled.
func InitSentry(cfg config.SentryConfig, appEnv, release string) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = appEnv
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
