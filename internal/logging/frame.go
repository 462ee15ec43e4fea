package logging

import (
	"context"
	"log/slog"
)

// FrameHandler stamps every record with the frame being simulated. Frame
// returns a negative number between replays, and records then go out as is.
type FrameHandler struct {
	inner slog.Handler
	frame func() int64
}

// NewFrameHandler wraps inner.
func NewFrameHandler(inner slog.Handler, frame func() int64) *FrameHandler {
	return &FrameHandler{inner: inner, frame: frame}
}

func (h *FrameHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *FrameHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.frame != nil {
		if f := h.frame(); f >= 0 {
			r.AddAttrs(slog.Int64("frame", f))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *FrameHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FrameHandler{inner: h.inner.WithAttrs(attrs), frame: h.frame}
}

func (h *FrameHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &FrameHandler{inner: h.inner.WithGroup(name), frame: h.frame}
}
