package store

import (
	"sync"
)

// Tracker is implemented by backends with dependency-tracked effects.
type Tracker interface {
	// Effect runs fn immediately, records every key it reads, and re-runs
	// it synchronously whenever one of those keys changes.
	Effect(fn func()) (stop func())
}

// ReactiveStore is the vue backend: reads inside an effect register the
// effect as a dependent of the key, and writes re-run dependents.
type ReactiveStore struct {
	*hub
	mu    sync.RWMutex
	state map[string]any

	trackMu sync.Mutex
	deps    map[string]map[*effect]struct{}
	active  []*effect
}

var (
	_ Store   = (*ReactiveStore)(nil)
	_ Tracker = (*ReactiveStore)(nil)
)

type effect struct {
	fn      func()
	deps    map[string]struct{}
	stopped bool
}

// NewReactive constructs a ReactiveStore.
func NewReactive(cfg Config) *ReactiveStore {
	return &ReactiveStore{
		hub:   newHub(cfg),
		state: make(map[string]any),
		deps:  make(map[string]map[*effect]struct{}),
	}
}

func (s *ReactiveStore) Framework() string { return Vue }

func (s *ReactiveStore) Init(initial map[string]any) {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	s.state = cloneMap(initial)
	s.mu.Unlock()
}

func (s *ReactiveStore) Get(key string) any {
	s.track(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[key]
}

// GetAll tracks every current key.
func (s *ReactiveStore) GetAll() map[string]any {
	s.mu.RLock()
	out := cloneMap(s.state)
	s.mu.RUnlock()
	for k := range out {
		s.track(k)
	}
	return out
}

func (s *ReactiveStore) Set(key string, value any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	s.mu.Lock()
	old := s.state[key]
	if Equal(old, value) {
		s.mu.Unlock()
		return
	}
	s.state[key] = value
	s.mu.Unlock()

	s.notify(key, value, old)
	s.trigger([]string{key})
	s.syncOne(key, value, o)
}

func (s *ReactiveStore) SetMany(updates map[string]any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	var changes []change
	s.mu.Lock()
	for _, k := range sortedKeys(updates) {
		old := s.state[k]
		if Equal(old, updates[k]) {
			continue
		}
		s.state[k] = updates[k]
		changes = append(changes, change{key: k, newValue: updates[k], oldValue: old})
	}
	s.mu.Unlock()
	if len(changes) == 0 {
		return
	}

	keys := make([]string, 0, len(changes))
	changed := make(map[string]any, len(changes))
	for _, c := range changes {
		s.notify(c.key, c.newValue, c.oldValue)
		keys = append(keys, c.key)
		changed[c.key] = c.newValue
	}
	s.trigger(keys)
	s.syncMany(changed, o)
}

func (s *ReactiveStore) Subscribe(fn Subscriber) func() { return s.subscribe(fn) }

func (s *ReactiveStore) SubscribeKey(key string, fn Subscriber) func() {
	return s.subscribeKey(key, fn)
}

// Effect implements Tracker.
func (s *ReactiveStore) Effect(fn func()) func() {
	e := &effect{fn: fn, deps: make(map[string]struct{})}
	if s.isDisposed() {
		return func() {}
	}
	s.run(e)
	return func() { s.stop(e) }
}

func (s *ReactiveStore) run(e *effect) {
	s.trackMu.Lock()
	if e.stopped {
		s.trackMu.Unlock()
		return
	}
	for _, running := range s.active {
		if running == e {
			s.trackMu.Unlock()
			return
		}
	}
	s.untrackLocked(e)
	s.active = append(s.active, e)
	s.trackMu.Unlock()

	defer func() {
		s.trackMu.Lock()
		s.active = s.active[:len(s.active)-1]
		s.trackMu.Unlock()
	}()
	e.fn()
}

func (s *ReactiveStore) track(key string) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if len(s.active) == 0 {
		return
	}
	e := s.active[len(s.active)-1]
	set := s.deps[key]
	if set == nil {
		set = make(map[*effect]struct{})
		s.deps[key] = set
	}
	set[e] = struct{}{}
	e.deps[key] = struct{}{}
}

// trigger re-runs each dependent of keys once.
func (s *ReactiveStore) trigger(keys []string) {
	s.trackMu.Lock()
	seen := make(map[*effect]struct{})
	var queue []*effect
	for _, k := range keys {
		for e := range s.deps[k] {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			queue = append(queue, e)
		}
	}
	s.trackMu.Unlock()

	for _, e := range queue {
		if s.isDisposed() {
			return
		}
		s.run(e)
	}
}

func (s *ReactiveStore) untrackLocked(e *effect) {
	for k := range e.deps {
		if set := s.deps[k]; set != nil {
			delete(set, e)
			if len(set) == 0 {
				delete(s.deps, k)
			}
		}
	}
	e.deps = make(map[string]struct{})
}

func (s *ReactiveStore) stop(e *effect) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	s.untrackLocked(e)
}

// EffectCount reports how many effects currently depend on key.
func (s *ReactiveStore) EffectCount(key string) int {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	return len(s.deps[key])
}

func (s *ReactiveStore) Dispose() {
	if !s.dispose() {
		return
	}
	s.trackMu.Lock()
	for _, set := range s.deps {
		for e := range set {
			e.stopped = true
		}
	}
	s.deps = make(map[string]map[*effect]struct{})
	s.trackMu.Unlock()
	s.mu.Lock()
	s.state = make(map[string]any)
	s.mu.Unlock()
}

func (s *ReactiveStore) Disposed() bool { return s.isDisposed() }
