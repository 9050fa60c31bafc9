// Package events fans transport notifications out to the bot's subsystems.
package events

import (
	"context"
	"sync"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/logging"
)

// All subscribes a handler to every event kind.
const All = "*"

// Handler handles one event. Returning an error logs the failure but does
// not stop processing.
type Handler func(ctx context.Context, evt domain.Event) error

// Bus manages subscriptions and dispatches events.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewBus creates an event bus.
func NewBus(log *logging.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("events"),
	}
}

// On registers a handler for the given event kind, or All.
// The name identifies the handler in logs.
func (b *Bus) On(kind, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], namedHandler{name: name, handler: handler})
	b.log.Debug().Str("kind", kind).Str("handler", name).Msg("handler registered")
}

// Trace logs the kind of every event at trace level.
func (b *Bus) Trace() {
	b.On(All, "trace", func(_ context.Context, evt domain.Event) error {
		b.log.Trace().Str("kind", evt.Kind()).Msg("event")
		return nil
	})
}

// Emit dispatches an event synchronously. Kind-specific handlers run first
// in registration order, then All handlers. Errors are logged and do not
// prevent subsequent handlers from running.
func (b *Bus) Emit(ctx context.Context, evt domain.Event) {
	handlers := b.snapshot(evt.Kind())
	for _, h := range handlers {
		if err := h.handler(ctx, evt); err != nil {
			b.log.Warn().
				Err(err).
				Str("kind", evt.Kind()).
				Str("handler", h.name).
				Msg("event handler error")
		}
	}
}

// Publish returns a sink suitable for domain.Transport.OnEvent.
func (b *Bus) Publish(ctx context.Context) func(domain.Event) {
	return func(evt domain.Event) { b.Emit(ctx, evt) }
}

// Count returns the number of handlers registered for a kind.
func (b *Bus) Count(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus) snapshot(kind string) []namedHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]namedHandler, 0, len(b.handlers[kind])+len(b.handlers[All]))
	out = append(out, b.handlers[kind]...)
	if kind != All {
		out = append(out, b.handlers[All]...)
	}
	return out
}
