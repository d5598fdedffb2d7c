package errutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

var sentryEnabled bool

// InitSentry enables error reporting. An empty DSN leaves reporting disabled.
func InitSentry(dsn, env, release string) error {
	if dsn == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry")
	}
	sentryEnabled = true
	return nil
}

// Flush waits for buffered reports to be sent
func Flush() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

// Handle logs err and reports it to Sentry if enabled
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	attrs := []any{slog.Any("error", err)}
	if e := goerr.Unwrap(err); e != nil {
		for k, v := range e.Values() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	ctxlog.From(ctx).Error(msg, attrs...)

	if !sentryEnabled {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if values := errorValues(err); len(values) > 0 {
			scope.SetContext("values", values)
		}
		hub.CaptureException(err)
	})
}

// errorValues collects the goerr values of err as a Sentry context
func errorValues(err error) sentry.Context {
	values := sentry.Context{}
	if e := goerr.Unwrap(err); e != nil {
		for k, v := range e.Values() {
			values[k] = v
		}
	}
	return values
}
