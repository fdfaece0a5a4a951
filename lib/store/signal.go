package store

import "sync"

// Versioned is implemented by backends whose binding engines run explicit
// change detection: Version increases on every applied change, so a
// detector can skip a pass when nothing moved.
type Versioned interface {
	Version() uint64
	// KeyVersion returns the version at which key last changed.
	KeyVersion(key string) uint64
}

type signalCell struct {
	value   any
	version uint64
}

// SignalStore is the angular backend: each key is a signal carrying the
// store version at which it last changed.
type SignalStore struct {
	*hub
	mu      sync.RWMutex
	signals map[string]*signalCell
	version uint64
}

var (
	_ Store     = (*SignalStore)(nil)
	_ Versioned = (*SignalStore)(nil)
)

// NewSignal constructs a SignalStore.
func NewSignal(cfg Config) *SignalStore {
	return &SignalStore{hub: newHub(cfg), signals: make(map[string]*signalCell)}
}

func (s *SignalStore) Framework() string { return Angular }

func (s *SignalStore) Init(initial map[string]any) {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	s.version++
	s.signals = make(map[string]*signalCell, len(initial))
	for k, v := range initial {
		s.signals[k] = &signalCell{value: v, version: s.version}
	}
	s.mu.Unlock()
}

func (s *SignalStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *SignalStore) KeyVersion(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.signals[key]; ok {
		return c.version
	}
	return 0
}

func (s *SignalStore) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.signals[key]; ok {
		return c.value
	}
	return nil
}

func (s *SignalStore) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.signals))
	for k, c := range s.signals {
		out[k] = c.value
	}
	return out
}

// writeLocked applies one update; the caller holds s.mu.
func (s *SignalStore) writeLocked(key string, value any) (any, bool) {
	c, ok := s.signals[key]
	if ok && Equal(c.value, value) {
		return c.value, false
	}
	if !ok {
		if value == nil {
			return nil, false
		}
		c = &signalCell{}
		s.signals[key] = c
	}
	old := c.value
	s.version++
	c.value, c.version = value, s.version
	return old, true
}

func (s *SignalStore) Set(key string, value any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	s.mu.Lock()
	old, changed := s.writeLocked(key, value)
	s.mu.Unlock()
	if !changed {
		return
	}
	s.notify(key, value, old)
	s.syncOne(key, value, o)
}

func (s *SignalStore) SetMany(updates map[string]any, opts ...SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	var changes []change
	s.mu.Lock()
	for _, k := range sortedKeys(updates) {
		if old, changed := s.writeLocked(k, updates[k]); changed {
			changes = append(changes, change{key: k, newValue: updates[k], oldValue: old})
		}
	}
	s.mu.Unlock()
	s.notifyAll(changes, o)
}

func (s *SignalStore) Subscribe(fn Subscriber) func() { return s.subscribe(fn) }

func (s *SignalStore) SubscribeKey(key string, fn Subscriber) func() {
	return s.subscribeKey(key, fn)
}

func (s *SignalStore) Dispose() {
	if !s.dispose() {
		return
	}
	s.mu.Lock()
	s.signals = make(map[string]*signalCell)
	s.mu.Unlock()
}

func (s *SignalStore) Disposed() bool { return s.isDisposed() }
