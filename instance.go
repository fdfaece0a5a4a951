package accelade

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/actions"
	"github.com/pthm/accelade/lib/binding"
	"github.com/pthm/accelade/lib/extension"
	"github.com/pthm/accelade/lib/sandbox"
	"github.com/pthm/accelade/lib/store"
	"github.com/pthm/accelade/lib/syncer"
)

// Instance is one hydrated component.
type Instance struct {
	rt        *Runtime
	id        string
	root      *html.Node
	framework string
	syncKeys  []string
	logger    *zap.Logger

	store    store.Store
	engine   binding.Engine
	actions  *actions.Extended
	scripts  []*sandbox.Methods
	features map[string]extension.Method

	cleanups cleanups
	once     sync.Once
	disposed atomic.Bool
}

// ID returns the component id.
func (inst *Instance) ID() string { return inst.id }

// Root returns the component's root element.
func (inst *Instance) Root() *html.Node { return inst.root }

// Framework returns the framework tag the component was hydrated with.
func (inst *Instance) Framework() string { return inst.framework }

// Store returns the component's state store.
func (inst *Instance) Store() store.Store { return inst.store }

// Engine returns the component's binding engine.
func (inst *Instance) Engine() binding.Engine { return inst.engine }

// Actions returns the component's action vocabulary.
func (inst *Instance) Actions() *actions.Extended { return inst.actions }

// SyncKeys returns the sync-enabled properties.
func (inst *Instance) SyncKeys() []string {
	return append([]string(nil), inst.syncKeys...)
}

// Methods lists the custom methods defined by scripts and extensions.
func (inst *Instance) Methods() []string {
	seen := make(map[string]bool)
	for _, m := range inst.scripts {
		for _, name := range m.Names() {
			seen[name] = true
		}
	}
	for name := range inst.features {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a state value.
func (inst *Instance) Get(key string) any {
	return inst.store.Get(key)
}

// State returns a copy of the component state.
func (inst *Instance) State() map[string]any {
	return inst.store.GetAll()
}

// Set writes a state value and refreshes the bindings.
func (inst *Instance) Set(key string, value any) error {
	if inst.Disposed() {
		return ErrDisposed
	}
	inst.rt.doc.Do(func() {
		inst.store.Set(key, value)
		inst.refresh()
	})
	return nil
}

// SetMany writes several values with at most one batched sync.
func (inst *Instance) SetMany(updates map[string]any) error {
	if inst.Disposed() {
		return ErrDisposed
	}
	inst.rt.doc.Do(func() {
		inst.store.SetMany(updates)
		inst.refresh()
	})
	return nil
}

// Call invokes a method by name: script methods first, then extension
// methods, then the action vocabulary.
//
//	inst.Call("increment", "count")
func (inst *Instance) Call(name string, args ...any) (any, error) {
	var (
		out any
		err error
	)
	inst.rt.doc.Do(func() {
		out, err = inst.invoke(name, args)
		inst.refresh()
	})
	return out, err
}

// Update re-applies every binding.
func (inst *Instance) Update() {
	inst.rt.doc.Do(func() {
		if !inst.Disposed() {
			inst.engine.Update()
		}
	})
}

// Dispose tears the component down: extensions, scripts, persistence,
// pending syncs, bindings and finally the store. Later calls are no-ops.
func (inst *Instance) Dispose() {
	inst.rt.doc.Do(inst.dispose)
}

// Disposed reports whether Dispose has run.
func (inst *Instance) Disposed() bool {
	return inst.disposed.Load()
}

func (inst *Instance) dispose() {
	inst.once.Do(func() {
		inst.disposed.Store(true)
		inst.cleanups.run()
		inst.logger.Debug("component disposed")
		inst.rt.doc.Emit(inst.root, "component", "disposed", map[string]any{"id": inst.id})
	})
}

func (inst *Instance) invoke(name string, args []any) (any, error) {
	if inst.Disposed() {
		return nil, ErrDisposed
	}
	for i := len(inst.scripts) - 1; i >= 0; i-- {
		if inst.scripts[i].Has(name) {
			return inst.scripts[i].Call(name, args)
		}
	}
	if fn, ok := inst.features[name]; ok {
		return fn(args)
	}
	out, err := inst.actions.Call(name, args)
	if errors.Is(err, actions.ErrUnknownAction) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return out, err
}

// refresh re-applies bindings for engines that only react to Update.
func (inst *Instance) refresh() {
	if inst.engine != nil && inst.engine.Manual() && !inst.Disposed() {
		inst.engine.Update()
	}
}

// scope is what event handlers run against.
type scope struct {
	inst *Instance
}

func (s scope) State() map[string]any {
	return s.inst.store.GetAll()
}

func (s scope) Invoke(name string, args []any) error {
	_, err := s.inst.invoke(name, args)
	return err
}

func (s scope) Assign(key string, value any) {
	s.inst.store.Set(key, value)
}

// syncHook hands sync-enabled changes to the runtime's channel and logs the
// outcome. Cancelled requests are not failures.
type syncHook struct {
	inst *Instance
}

func (h syncHook) SyncProperty(key string, value any) {
	rt := h.inst.rt
	h.inst.await(key, rt.channel.Sync(h.inst.id, key, value))
}

func (h syncHook) SyncBatch(updates map[string]any) {
	rt := h.inst.rt
	h.inst.await("", rt.channel.BatchSync(h.inst.id, updates))
}

func (inst *Instance) await(property string, results <-chan syncer.Result) {
	go func() {
		res := <-results
		log := inst.logger.With(zap.String("property", property))
		switch {
		case res.Cancelled:
			log.Debug("sync cancelled")
			return
		case !res.Success:
			log.Warn("sync failed", zap.Int("status", res.Status), zap.Error(res.Err))
		default:
			log.Debug("synced", zap.Int("status", res.Status))
		}
		event := "success"
		if !res.Success {
			event = "error"
		}
		inst.rt.doc.Do(func() {
			if inst.Disposed() {
				return
			}
			detail := map[string]any{"property": property, "status": res.Status}
			if res.Err != nil {
				detail["error"] = res.Err.Error()
			}
			inst.rt.doc.Emit(inst.root, "sync", event, detail)
		})
	}()
}
