// Package globalstore holds named state maps shared by every component that
// opts in by name.
//
// Entries are created lazily on first reference and live until Reset.
// Writes are last-write-wins: components sharing a name race freely and no
// conflict is detected.
package globalstore

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Subscriber receives each write to an entry.
type Subscriber func(key string, value any)

type subscription struct {
	fn     Subscriber
	active atomic.Bool
}

// Entry is one named shared map.
type Entry struct {
	name string

	mu     sync.RWMutex
	values map[string]any
	subs   []*subscription
}

// Name returns the store name.
func (e *Entry) Name() string { return e.name }

// Get returns the value of key.
func (e *Entry) Get(key string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[key]
}

// All returns a copy of the entry.
func (e *Entry) All() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Set writes key and notifies subscribers. The write always lands; equality
// filtering is the subscribing store's job.
func (e *Entry) Set(key string, value any) {
	e.mu.Lock()
	e.values[key] = value
	subs := append([]*subscription(nil), e.subs...)
	e.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.fn(key, value)
		}
	}
}

// Seed writes keys that are not yet present without notifying anyone, so
// the first component to reference an entry provides its defaults.
func (e *Entry) Seed(values map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range values {
		if _, ok := e.values[k]; !ok {
			e.values[k] = v
		}
	}
}

// Keys returns the entry's keys in sorted order.
func (e *Entry) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn for every later Set and returns an idempotent
// unsubscribe.
func (e *Entry) Subscribe(fn Subscriber) func() {
	s := &subscription{fn: fn}
	s.active.Store(true)
	e.mu.Lock()
	e.subs = append(e.subs, s)
	e.mu.Unlock()
	return func() {
		if !s.active.Swap(false) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		out := e.subs[:0:0]
		for _, other := range e.subs {
			if other != s {
				out = append(out, other)
			}
		}
		e.subs = out
	}
}

func (e *Entry) drop() {
	e.mu.Lock()
	for _, s := range e.subs {
		s.active.Store(false)
	}
	e.subs = nil
	e.mu.Unlock()
}

// Registry owns the named entries for one page.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Get returns the entry for name, creating it on first use.
func (r *Registry) Get(name string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		e = &Entry{name: name, values: make(map[string]any)}
		r.entries[name] = e
	}
	return e
}

// Lookup returns the entry for name without creating it.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names lists the existing entries in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset drops every entry and deactivates their subscribers. Components
// still holding an old entry keep a detached copy that no longer reaches
// the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	old := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()
	for _, e := range old {
		e.drop()
	}
}
