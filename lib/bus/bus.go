// Package bus is the page-level event bus behind script $emit/$on and the
// echo extension.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Handler receives an event payload.
type Handler func(payload any)

type handler struct {
	fn     Handler
	active atomic.Bool
}

// Bus delivers named events to handlers synchronously, in subscription
// order. A handler added or removed during delivery takes effect from the
// next Emit.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]*handler)}
}

// On subscribes fn to name and returns an idempotent unsubscribe.
func (b *Bus) On(name string, fn Handler) func() {
	h := &handler{fn: fn}
	h.active.Store(true)
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
	return func() {
		if !h.active.Swap(false) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.handlers[name]
		out := list[:0:0]
		for _, other := range list {
			if other != h {
				out = append(out, other)
			}
		}
		if len(out) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = out
		}
	}
}

// Emit delivers payload to every handler of name and reports how many ran.
func (b *Bus) Emit(name string, payload any) int {
	b.mu.Lock()
	list := append([]*handler(nil), b.handlers[name]...)
	b.mu.Unlock()

	n := 0
	for _, h := range list {
		if h.active.Load() {
			h.fn(payload)
			n++
		}
	}
	return n
}

// Count reports the handlers subscribed to name.
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}

// Channel returns the event name for a broadcast channel event, the form
// the echo extension listens on: "echo:<channel>.<event>".
func Channel(channel, event string) string {
	return "echo:" + strings.TrimSpace(channel) + "." + strings.TrimPrefix(strings.TrimSpace(event), ".")
}
