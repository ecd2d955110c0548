// Package log routes all logging performed by hearth through a single swappable slog.Handler.
// By default everything is discarded; embedding applications opt in by calling To with a
// handler of their choosing. This keeps the library quiet unless asked and avoids forcing a
// logging framework on the host process.
package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	ComponentKey = "component"
	EntityKey    = "entity"
	ErrorKey     = "error"
)

// Error returns a slog.Attr for the provided error under ErrorKey.
func Error(e error) slog.Attr {
	return slog.Any(ErrorKey, e)
}

// indirectHandler forwards to the handler most recently installed with To. A nil handler
// disables logging entirely.
type indirectHandler struct {
	h atomic.Pointer[slog.Handler]
}

func (i *indirectHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := i.h.Load()
	if h == nil {
		return false
	}

	return (*h).Enabled(ctx, level)
}

func (i *indirectHandler) Handle(ctx context.Context, record slog.Record) error {
	h := i.h.Load()
	if h == nil {
		return nil
	}

	return (*h).Handle(ctx, record)
}

func (i *indirectHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h := i.h.Load()
	if h == nil {
		return i
	}

	return (*h).WithAttrs(attrs)
}

func (i *indirectHandler) WithGroup(name string) slog.Handler {
	h := i.h.Load()
	if h == nil {
		return i
	}

	return (*h).WithGroup(name)
}

var _ slog.Handler = &indirectHandler{}

var sink = &indirectHandler{h: atomic.Pointer[slog.Handler]{}}

// To updates all slog.Logger objects used internally by hearth to write logs to the provided
// slog.Handler. Pass nil to silence the library again.
func To(h slog.Handler) {
	if h == nil {
		sink.h.Store(nil)
		return
	}

	sink.h.Store(&h)
}

// ForComponent constructs a slog.Logger for the specified component (stored in an attribute
// with the key ComponentKey).
func ForComponent(component string) *slog.Logger {
	return slog.New(sink).With(slog.String(ComponentKey, component))
}

// ForEntity constructs a slog.Logger for an entity hosted by the specified component. The
// entity name is stored in an attribute with the key EntityKey.
func ForEntity(component, entity string) *slog.Logger {
	return ForComponent(component).With(slog.String(EntityKey, entity))
}
