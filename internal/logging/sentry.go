package logging

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// sentryHandler forwards error records to Sentry after the wrapped handler
// has written them.
type sentryHandler struct {
	slog.Handler
	attrs []slog.Attr
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= slog.LevelError {
		sentry.CaptureEvent(recordToEvent(r, h.attrs))
	}
	return nil
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &sentryHandler{Handler: h.Handler.WithAttrs(attrs), attrs: merged}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{Handler: h.Handler.WithGroup(name), attrs: h.attrs}
}

// recordToEvent converts a slog record into a Sentry event, copying
// attributes into the event's extra data.
func recordToEvent(r slog.Record, base []slog.Attr) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = sentryLevel(r.Level)
	event.Message = r.Message
	event.Timestamp = r.Time
	for _, a := range base {
		event.Extra[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		event.Extra[a.Key] = a.Value.Any()
		return true
	})
	return event
}

func sentryLevel(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
