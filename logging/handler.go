package logging

import (
	"context"
	"log/slog"
)

// Handler is a slog.Handler that masks secrets in the message and in every
// string-like attribute before delegating.
type Handler struct {
	inner  slog.Handler
	masker *Masker
}

// NewHandler wraps inner.
func NewHandler(inner slog.Handler, masker *Masker) *Handler {
	return &Handler{inner: inner, masker: masker}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, h.masker.Mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.inner.Handle(ctx, masked)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.maskAttr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(out), masker: h.masker}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), masker: h.masker}
}

func (h *Handler) maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.masker.Mask(v.String()))
	case slog.KindAny:
		// errors and Stringers are formatted before masking
		return slog.String(a.Key, h.masker.Mask(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, g := range group {
			out[i] = h.maskAttr(g)
		}
		return slog.Group(a.Key, out...)
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
