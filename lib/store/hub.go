package store

import (
	"sort"
	"sync"
	"sync/atomic"
)

type subscription struct {
	fn     Subscriber
	active atomic.Bool
}

// hub owns the subscriber sets and sync hand-off shared by every backend.
type hub struct {
	mu       sync.Mutex
	wildcard []*subscription
	keyed    map[string][]*subscription
	syncKeys map[string]bool
	hook     SyncHook
	disposed atomic.Bool
}

func newHub(cfg Config) *hub {
	h := &hub{
		keyed:    make(map[string][]*subscription),
		syncKeys: make(map[string]bool, len(cfg.SyncKeys)),
		hook:     cfg.Hook,
	}
	for _, k := range cfg.SyncKeys {
		h.syncKeys[k] = true
	}
	return h
}

func (h *hub) subscribe(fn Subscriber) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)
	h.mu.Lock()
	h.wildcard = append(h.wildcard, sub)
	h.mu.Unlock()
	return func() {
		if !sub.active.Swap(false) {
			return
		}
		h.mu.Lock()
		h.wildcard = without(h.wildcard, sub)
		h.mu.Unlock()
	}
}

func (h *hub) subscribeKey(key string, fn Subscriber) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)
	h.mu.Lock()
	h.keyed[key] = append(h.keyed[key], sub)
	h.mu.Unlock()
	return func() {
		if !sub.active.Swap(false) {
			return
		}
		h.mu.Lock()
		h.keyed[key] = without(h.keyed[key], sub)
		if len(h.keyed[key]) == 0 {
			delete(h.keyed, key)
		}
		h.mu.Unlock()
	}
}

func without(subs []*subscription, target *subscription) []*subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// notify runs key-scoped then wildcard subscribers. The lists are
// snapshotted, but each subscription is re-checked right before its call so
// an unsubscribe made by an earlier subscriber takes effect immediately.
func (h *hub) notify(key string, newValue, oldValue any) {
	if h.disposed.Load() {
		return
	}
	h.mu.Lock()
	keyed := append([]*subscription(nil), h.keyed[key]...)
	wildcard := append([]*subscription(nil), h.wildcard...)
	h.mu.Unlock()

	for _, sub := range keyed {
		if sub.active.Load() {
			sub.fn(newValue, oldValue, key)
		}
	}
	for _, sub := range wildcard {
		if sub.active.Load() {
			sub.fn(newValue, oldValue, key)
		}
	}
}

func (h *hub) syncOne(key string, value any, o setOptions) {
	if !o.sync || h.hook == nil || !h.syncKeys[key] || h.disposed.Load() {
		return
	}
	h.hook.SyncProperty(key, value)
}

func (h *hub) syncMany(changed map[string]any, o setOptions) {
	if !o.sync || h.hook == nil || h.disposed.Load() {
		return
	}
	updates := make(map[string]any)
	for k, v := range changed {
		if h.syncKeys[k] {
			updates[k] = v
		}
	}
	if len(updates) > 0 {
		h.hook.SyncBatch(updates)
	}
}

// dispose deactivates every subscription and reports whether this call did
// the disposing.
func (h *hub) dispose() bool {
	if h.disposed.Swap(true) {
		return false
	}
	h.mu.Lock()
	for _, s := range h.wildcard {
		s.active.Store(false)
	}
	for _, subs := range h.keyed {
		for _, s := range subs {
			s.active.Store(false)
		}
	}
	h.wildcard = nil
	h.keyed = make(map[string][]*subscription)
	h.mu.Unlock()
	return true
}

func (h *hub) isDisposed() bool {
	return h.disposed.Load()
}

// change is one applied mutation awaiting notification.
type change struct {
	key      string
	newValue any
	oldValue any
}

// notifyAll runs notifications for already-applied changes in order, then
// issues at most one batched sync.
func (h *hub) notifyAll(changes []change, o setOptions) {
	if len(changes) == 0 {
		return
	}
	changed := make(map[string]any, len(changes))
	for _, c := range changes {
		h.notify(c.key, c.newValue, c.oldValue)
		changed[c.key] = c.newValue
	}
	h.syncMany(changed, o)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
