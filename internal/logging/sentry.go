package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise sentry: %w", err)
	}
	return nil
}

func FlushSentry(timeout time.Duration) {
	if !sentry.Flush(timeout) {
		slog.Warn("sentry flush timed out, some events may be lost")
	}
}

// SentryHandler reports ERROR records to Sentry before passing them on.
type SentryHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func NewSentryHandler(next slog.Handler) *SentryHandler {
	return &SentryHandler{next: next}
}

func (h *SentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		capture(r, h.attrs)
	}
	return h.next.Handle(ctx, r)
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SentryHandler{next: h.next.WithAttrs(attrs), attrs: merged}
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	return &SentryHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}

func capture(r slog.Record, base []slog.Attr) {
	extra := sentry.Context{}
	var cause error

	collect := func(a slog.Attr) bool {
		if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
			cause = err
		}
		extra[a.Key] = a.Value.String()
		return true
	}
	for _, a := range base {
		collect(a)
	}
	r.Attrs(collect)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetContext("log", extra)
		if cause != nil {
			sentry.CaptureException(errors.Join(errors.New(r.Message), cause))
			return
		}
		sentry.CaptureMessage(r.Message)
	})
}
