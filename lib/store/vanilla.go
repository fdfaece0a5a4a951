package store

import "sync"

// VanillaStore is the framework-free reference backend: a plain owned map.
type VanillaStore struct {
	*hub
	mu    sync.RWMutex
	state map[string]any
}

var _ Store = (*VanillaStore)(nil)

// NewVanilla constructs a VanillaStore.
func NewVanilla(cfg Config) *VanillaStore {
	return &VanillaStore{hub: newHub(cfg), state: make(map[string]any)}
}

func (s *VanillaStore) Framework() string { return Vanilla }

func (s *VanillaStore) Init(initial map[string]any) {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	s.state = cloneMap(initial)
	s.mu.Unlock()
}

func (s *VanillaStore) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[key]
}

func (s *VanillaStore) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.state)
}

func (s *VanillaStore) Set(key string, value any, opts ...SetOption) {
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
	s.syncOne(key, value, o)
}

func (s *VanillaStore) SetMany(updates map[string]any, opts ...SetOption) {
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

	s.notifyAll(changes, o)
}

func (s *VanillaStore) Subscribe(fn Subscriber) func() { return s.subscribe(fn) }

func (s *VanillaStore) SubscribeKey(key string, fn Subscriber) func() {
	return s.subscribeKey(key, fn)
}

func (s *VanillaStore) Dispose() {
	if !s.dispose() {
		return
	}
	s.mu.Lock()
	s.state = make(map[string]any)
	s.mu.Unlock()
}

func (s *VanillaStore) Disposed() bool { return s.isDisposed() }
