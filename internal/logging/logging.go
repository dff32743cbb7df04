package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

type contextKey string

const (
	EnvelopeIDKey   contextKey = "envelope_id"
	SubscriberIDKey contextKey = "subscriber_id"
	ScopeKey        contextKey = "scope"
)

// MultiHandler sends log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if err := h.Handle(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

// Init installs the default logger: text on stdout, JSON appended to the
// given file. An empty path logs to stdout only.
func Init(logFilePath string) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	stdoutHandler := slog.NewTextHandler(os.Stdout, opts)
	if logFilePath == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Error("failed to open log file", slog.Any("error", err))
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}

	jsonHandler := slog.NewJSONHandler(logFile, opts)
	slog.SetDefault(slog.New(&MultiHandler{
		handlers: []slog.Handler{stdoutHandler, jsonHandler},
	}))
}

func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if val, ok := ctx.Value(EnvelopeIDKey).(string); ok {
		l = l.With("envelope_id", val)
	}
	if val, ok := ctx.Value(SubscriberIDKey).(string); ok {
		l = l.With("subscriber_id", val)
	}
	if val, ok := ctx.Value(ScopeKey).(string); ok && val != "" {
		l = l.With("scope", val)
	}
	return l
}

func WithEnvelopeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EnvelopeIDKey, id)
}

func WithSubscriberID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SubscriberIDKey, id)
}

func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}
