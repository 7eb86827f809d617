package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AdminLogHandler passes records to an inner handler and also forwards
// those at or above Level to a bot admin as a chat message.
type AdminLogHandler struct {
	inner slog.Handler
	level slog.Leveler
	send  func(ctx context.Context, text string) error

	attrs  []slog.Attr
	groups []string
}

func NewAdminLogHandler(inner slog.Handler, level slog.Leveler, send func(ctx context.Context, text string) error) *AdminLogHandler {
	return &AdminLogHandler{inner: inner, level: level, send: send}
}

func (h *AdminLogHandler) forwards(l slog.Level) bool {
	return h.send != nil && l >= h.level.Level()
}

func (h *AdminLogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l) || h.forwards(l)
}

func (h *AdminLogHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if !h.forwards(r.Level) {
		return err
	}
	if sendErr := h.send(ctx, h.format(r)); sendErr != nil {
		// reported through the inner handler only, so it cannot loop
		fail := slog.NewRecord(r.Time, slog.LevelWarn, "failed to forward log to admin", 0)
		fail.AddAttrs(slog.String("err", sendErr.Error()))
		if h.inner.Enabled(ctx, slog.LevelWarn) {
			_ = h.inner.Handle(ctx, fail)
		}
	}
	return err
}

func (h *AdminLogHandler) format(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Level, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value)
		return true
	})
	return b.String()
}

func (h *AdminLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	next := *h
	next.inner = h.inner.WithAttrs(attrs)
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *AdminLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.inner = h.inner.WithGroup(name)
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}
