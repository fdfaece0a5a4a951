package accelade

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks the live components of a runtime by id.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// add registers inst. An id that is already live is rejected.
func (reg *Registry) add(inst *Instance) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.instances[inst.id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, inst.id)
	}
	reg.instances[inst.id] = inst
	return nil
}

// remove drops inst if it is still the registered instance for its id.
func (reg *Registry) remove(inst *Instance) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.instances[inst.id] == inst {
		delete(reg.instances, inst.id)
	}
}

// Has reports whether id is live.
func (reg *Registry) Has(id string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.instances[id]
	return ok
}

// Get returns the live component with id.
func (reg *Registry) Get(id string) (*Instance, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	inst, ok := reg.instances[id]
	return inst, ok
}

// IDs returns the live ids in sorted order.
func (reg *Registry) IDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.instances))
	for id := range reg.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len counts live components.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.instances)
}

// cleanups collects the teardown functions registered while a component
// hydrates and runs them once, newest first.
type cleanups struct {
	mu  sync.Mutex
	fns []func()
	ran bool
}

// add registers fn. After run, fn is invoked immediately instead.
func (c *cleanups) add(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		fn()
		return
	}
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

// run invokes every registered function in reverse order. Later calls are
// no-ops.
func (c *cleanups) run() {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return
	}
	c.ran = true
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// len counts pending cleanups.
func (c *cleanups) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}
