package store

import "sync"

// Snapshotter is implemented by backends that publish immutable, versioned
// snapshots.
type Snapshotter interface {
	// Snapshot returns the current state and its version. The map must not
	// be mutated.
	Snapshot() (map[string]any, uint64)
}

// SnapshotStore is the react backend: every change replaces the state with a
// new immutable map and bumps the version, the way a state hook swaps its
// value. A SetMany produces a single new version.
type SnapshotStore struct {
	*hub
	mu      sync.RWMutex
	current map[string]any
	version uint64
}

var (
	_ Store       = (*SnapshotStore)(nil)
	_ Snapshotter = (*SnapshotStore)(nil)
)

// NewSnapshot constructs a SnapshotStore.
func NewSnapshot(cfg Config) *SnapshotStore {
	return &SnapshotStore{hub: newHub(cfg), current: map[string]any{}}
}

func (s *SnapshotStore) Framework() string { return React }

func (s *SnapshotStore) Init(initial map[string]any) {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	s.current = cloneMap(initial)
	s.version++
	s.mu.Unlock()
}

func (s *SnapshotStore) Snapshot() (map[string]any, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.version
}

func (s *SnapshotStore) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[key]
}

func (s *SnapshotStore) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.current)
}

func (s *SnapshotStore) Set(key string, value any, opts ...SetOption) {
	s.apply(map[string]any{key: value}, true, opts)
}

// SetMany publishes one new snapshot for all changed keys.
func (s *SnapshotStore) SetMany(updates map[string]any, opts ...SetOption) {
	s.apply(updates, false, opts)
}

func (s *SnapshotStore) apply(updates map[string]any, single bool, opts []SetOption) {
	if s.isDisposed() {
		return
	}
	o := applySetOptions(opts)
	var changes []change
	s.mu.Lock()
	next := s.current
	for _, k := range sortedKeys(updates) {
		old := s.current[k]
		if Equal(old, updates[k]) {
			continue
		}
		if len(changes) == 0 {
			next = cloneMap(s.current)
		}
		next[k] = updates[k]
		changes = append(changes, change{key: k, newValue: updates[k], oldValue: old})
	}
	if len(changes) > 0 {
		s.current = next
		s.version++
	}
	s.mu.Unlock()

	if single && len(changes) == 1 {
		c := changes[0]
		s.notify(c.key, c.newValue, c.oldValue)
		s.syncOne(c.key, c.newValue, o)
		return
	}
	s.notifyAll(changes, o)
}

func (s *SnapshotStore) Subscribe(fn Subscriber) func() { return s.subscribe(fn) }

func (s *SnapshotStore) SubscribeKey(key string, fn Subscriber) func() {
	return s.subscribeKey(key, fn)
}

func (s *SnapshotStore) Dispose() {
	if !s.dispose() {
		return
	}
	s.mu.Lock()
	s.current = map[string]any{}
	s.mu.Unlock()
}

func (s *SnapshotStore) Disposed() bool { return s.isDisposed() }
