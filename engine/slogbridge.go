package engine

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zerologHandler adapts a zerolog.Logger to slog.Handler so the
// supervision tree's sutureslog event hook can log through the same
// sink as every other subsystem instead of opening a second logger.
type zerologHandler struct {
	log zerolog.Logger
}

func newSlogLogger(log zerolog.Logger) *slog.Logger {
	return slog.New(&zerologHandler{log: log.With().Str("component", "supervisor").Logger()})
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.log.GetLevel() <= zerologLevel(level)
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	evt := h.log.WithLevel(zerologLevel(r.Level))
	r.Attrs(func(a slog.Attr) bool {
		evt = evt.Interface(a.Key, a.Value.Any())
		return true
	})
	evt.Msg(r.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	ctx := h.log.With()
	for _, a := range attrs {
		ctx = ctx.Interface(a.Key, a.Value.Any())
	}
	return &zerologHandler{log: ctx.Logger()}
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	return h
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
