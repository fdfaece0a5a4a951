package store

import (
	"sync"
	"sync/atomic"
)

// Writable is a single-key store with the svelte store contract: Subscribe
// calls run immediately with the current value and again after every change.
type Writable struct {
	owner *WritableStore
	key   string

	mu      sync.Mutex
	value   any
	present bool
	subs    []*writableSub
}

type writableSub struct {
	run    func(any)
	active atomic.Bool
}

// Key returns the state key this writable holds.
func (w *Writable) Key() string { return w.key }

// Value returns the current value.
func (w *Writable) Value() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Subscribe registers run and calls it with the current value.
func (w *Writable) Subscribe(run func(any)) func() {
	sub := &writableSub{run: run}
	sub.active.Store(true)
	w.mu.Lock()
	w.subs = append(w.subs, sub)
	v := w.value
	w.mu.Unlock()
	run(v)
	return func() {
		if !sub.active.Swap(false) {
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		out := w.subs[:0:0]
		for _, s := range w.subs {
			if s != sub {
				out = append(out, s)
			}
		}
		w.subs = out
	}
}

// Set writes through the owning store so sync and subscribers behave exactly
// as for WritableStore.Set.
func (w *Writable) Set(v any) {
	w.owner.Set(w.key, v)
}

// Update sets the value to fn(current).
func (w *Writable) Update(fn func(any) any) {
	w.Set(fn(w.Value()))
}

func (w *Writable) publish(v any) {
	w.mu.Lock()
	subs := append([]*writableSub(nil), w.subs...)
	w.mu.Unlock()
	for _, s := range subs {
		if s.active.Load() {
			s.run(v)
		}
	}
}

func (w *Writable) drop() {
	w.mu.Lock()
	for _, s := range w.subs {
		s.active.Store(false)
	}
	w.subs = nil
	w.mu.Unlock()
}

// WritableStore is the svelte backend: one Writable per key.
type WritableStore struct {
	*hub
	mu    sync.RWMutex
	cells map[string]*Writable
}

var _ Store = (*WritableStore)(nil)

// NewWritable constructs a WritableStore.
func NewWritable(cfg Config) *WritableStore {
	return &WritableStore{hub: newHub(cfg), cells: make(map[string]*Writable)}
}

func (s *WritableStore) Framework() string { return Svelte }

// Writable returns the per-key store, creating it on first use.
func (s *WritableStore) Writable(key string) *Writable {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.cells[key]
	if !ok {
		w = &Writable{owner: s, key: key}
		if !s.isDisposed() {
			s.cells[key] = w
		}
	}
	return w
}

func (s *WritableStore) Init(initial map[string]any) {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, w := range s.cells {
		if _, ok := initial[k]; !ok {
			w.mu.Lock()
			w.value, w.present = nil, false
			w.mu.Unlock()
		}
	}
	for k, v := range initial {
		w, ok := s.cells[k]
		if !ok {
			w = &Writable{owner: s, key: k}
			s.cells[k] = w
		}
		w.mu.Lock()
		w.value, w.present = v, true
		w.mu.Unlock()
	}
}

func (s *WritableStore) Get(key string) any {
	s.mu.RLock()
	w, ok := s.cells[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return w.Value()
}

// GetAll omits writables that were created by a subscriber but never
// initialized or set.
func (s *WritableStore) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.cells))
	for k, w := range s.cells {
		w.mu.Lock()
		if w.present {
			out[k] = w.value
		}
		w.mu.Unlock()
	}
	return out
}

// write stores v and reports the old value and whether anything changed.
func (s *WritableStore) write(key string, v any) (*Writable, any, bool) {
	w := s.Writable(key)
	w.mu.Lock()
	defer w.mu.Unlock()
	old := w.value
	if w.present && Equal(old, v) {
		return w, old, false
	}
	if !w.present && v == nil {
		w.present = true
		return w, old, false
	}
	w.value, w.present = v, true
	return w, old, true
}

func (s *WritableStore) Set(key string, value any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	w, old, changed := s.write(key, value)
	if !changed {
		return
	}
	s.notify(key, value, old)
	w.publish(value)
	s.syncOne(key, value, o)
}

func (s *WritableStore) SetMany(updates map[string]any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	var changes []change
	var cells []*Writable
	for _, k := range sortedKeys(updates) {
		w, old, changed := s.write(k, updates[k])
		if !changed {
			continue
		}
		changes = append(changes, change{key: k, newValue: updates[k], oldValue: old})
		cells = append(cells, w)
	}
	if len(changes) == 0 {
		return
	}
	changed := make(map[string]any, len(changes))
	for i, c := range changes {
		s.notify(c.key, c.newValue, c.oldValue)
		cells[i].publish(c.newValue)
		changed[c.key] = c.newValue
	}
	s.syncMany(changed, o)
}

func (s *WritableStore) Subscribe(fn Subscriber) func() { return s.subscribe(fn) }

func (s *WritableStore) SubscribeKey(key string, fn Subscriber) func() {
	return s.subscribeKey(key, fn)
}

func (s *WritableStore) Dispose() {
	if !s.dispose() {
		return
	}
	s.mu.Lock()
	for _, w := range s.cells {
		w.drop()
	}
	s.cells = make(map[string]*Writable)
	s.mu.Unlock()
}

func (s *WritableStore) Disposed() bool { return s.isDisposed() }
