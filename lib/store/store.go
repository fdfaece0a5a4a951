// Package store holds a component's reactive state.
//
// Every backend implements Store with the same guarantees: subscribers run
// synchronously on the goroutine that called Set, after the new value is
// visible through Get, key-scoped subscribers before wildcard ones; setting
// a key to an equal value is a no-op. The backends differ in the reactive
// primitive they expose to their binding engines:
//
//	vanilla  plain map, wildcard notification
//	vue      per-key dependency tracking with auto-rerunning effects
//	react    immutable, versioned snapshots
//	svelte   per-key writable stores
//	angular  per-key signals with version counters for change detection
package store

import (
	"errors"
	"fmt"
)

// Framework tags.
const (
	Vanilla = "vanilla"
	Vue     = "vue"
	React   = "react"
	Svelte  = "svelte"
	Angular = "angular"
)

// Frameworks lists every supported framework tag.
var Frameworks = []string{Vanilla, Vue, React, Svelte, Angular}

// ErrUnknownFramework is returned by New for an unsupported tag.
var ErrUnknownFramework = errors.New("store: unknown framework")

// Subscriber receives (newValue, oldValue, key) after a change.
type Subscriber func(newValue, oldValue any, key string)

// SyncHook receives sync-enabled changes. SyncProperty is called for single
// sets, SyncBatch at most once per SetMany.
type SyncHook interface {
	SyncProperty(key string, value any)
	SyncBatch(updates map[string]any)
}

// Config configures a store.
type Config struct {
	// SyncKeys lists the properties handed to Hook on change.
	SyncKeys []string
	// Hook receives sync-enabled changes. Nil disables sync.
	Hook SyncHook
}

type setOptions struct {
	sync bool
}

// SetOption configures a Set or SetMany call.
type SetOption func(*setOptions)

// NoSync keeps the change local: subscribers still run, the sync hook does not.
func NoSync() SetOption {
	return func(o *setOptions) {
		o.sync = false
	}
}

func applySetOptions(opts []SetOption) setOptions {
	o := setOptions{sync: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Store is the reactive state contract shared by all backends.
type Store interface {
	// Framework reports the backend's framework tag.
	Framework() string
	// Init replaces the state without notifying subscribers or syncing.
	Init(initial map[string]any)
	Get(key string) any
	// GetAll returns a shallow copy of the state.
	GetAll() map[string]any
	Set(key string, value any, opts ...SetOption)
	SetMany(updates map[string]any, opts ...SetOption)
	Subscribe(fn Subscriber) (unsubscribe func())
	SubscribeKey(key string, fn Subscriber) (unsubscribe func())
	// Dispose clears subscribers and state. Later calls are no-ops, and a
	// disposed store ignores writes.
	Dispose()
	Disposed() bool
}

// New constructs the backend for framework. An empty tag selects vanilla.
func New(framework string, cfg Config) (Store, error) {
	switch framework {
	case "", Vanilla:
		return NewVanilla(cfg), nil
	case Vue:
		return NewReactive(cfg), nil
	case React:
		return NewSnapshot(cfg), nil
	case Svelte:
		return NewWritable(cfg), nil
	case Angular:
		return NewSignal(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, framework)
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
