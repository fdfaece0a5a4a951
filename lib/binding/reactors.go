package binding

import (
	"github.com/pthm/accelade/lib/store"
)

// stops collects unsubscribe functions.
type stops []func()

func (s *stops) add(fn func()) { *s = append(*s, fn) }

func (s *stops) stop() {
	for _, fn := range *s {
		fn()
	}
	*s = nil
}

// vanillaReactor re-applies every binding on any change.
type vanillaReactor struct{ subs stops }

func (r *vanillaReactor) start(e *engine) {
	r.subs.add(e.st.Subscribe(func(_, _ any, _ string) { e.runAll() }))
}

func (r *vanillaReactor) watch(*engine, *Binding) {}

func (r *vanillaReactor) env(e *engine, _ *Binding) map[string]any { return e.st.GetAll() }

func (r *vanillaReactor) afterEvent(*engine) {}
func (r *vanillaReactor) manual() bool       { return false }
func (r *vanillaReactor) stop()              { r.subs.stop() }

// vueReactor gives each binding its own tracked effect, so a change re-runs
// only the bindings that read the changed key.
type vueReactor struct {
	subs    stops
	tracker store.Tracker
}

func (r *vueReactor) start(e *engine) {
	t, ok := e.st.(store.Tracker)
	if !ok {
		// Untracked store: fall back to re-applying everything.
		r.subs.add(e.st.Subscribe(func(_, _ any, _ string) { e.runAll() }))
		return
	}
	r.tracker = t
	for _, b := range e.bindings {
		r.watch(e, b)
	}
}

func (r *vueReactor) watch(e *engine, b *Binding) {
	if r.tracker == nil || b.apply == nil {
		return
	}
	r.subs.add(r.tracker.Effect(func() { e.run(b) }))
}

func (r *vueReactor) env(e *engine, b *Binding) map[string]any { return depsEnv(e.st, b.deps) }

func (r *vueReactor) afterEvent(*engine) {}
func (r *vueReactor) manual() bool       { return false }
func (r *vueReactor) stop()              { r.subs.stop() }

// snapshotter is implemented by stores publishing versioned snapshots.
type snapshotter interface {
	Snapshot() (map[string]any, uint64)
}

// reactReactor renders all bindings against one immutable snapshot, once
// per snapshot version.
type reactReactor struct {
	subs     stops
	rendered uint64
}

func (r *reactReactor) start(e *engine) {
	if s, ok := e.st.(snapshotter); ok {
		_, r.rendered = s.Snapshot()
	}
	r.subs.add(e.st.Subscribe(func(_, _ any, _ string) { r.render(e) }))
}

func (r *reactReactor) render(e *engine) {
	s, ok := e.st.(snapshotter)
	if !ok {
		e.runAll()
		return
	}
	if _, version := s.Snapshot(); version != r.rendered {
		r.rendered = version
		e.runAll()
	}
}

func (r *reactReactor) watch(*engine, *Binding) {}

func (r *reactReactor) env(e *engine, _ *Binding) map[string]any {
	if s, ok := e.st.(snapshotter); ok {
		snap, _ := s.Snapshot()
		return snap
	}
	return e.st.GetAll()
}

func (r *reactReactor) afterEvent(*engine) {}
func (r *reactReactor) manual() bool       { return false }
func (r *reactReactor) stop()              { r.subs.stop() }

// writables is implemented by stores exposing per-key writable stores.
type writables interface {
	Writable(key string) *store.Writable
}

// svelteReactor subscribes each binding to the writables of the keys its
// expression reads.
type svelteReactor struct {
	subs stops
	ws   writables
}

func (r *svelteReactor) start(e *engine) {
	ws, ok := e.st.(writables)
	if !ok {
		r.subs.add(e.st.Subscribe(func(_, _ any, _ string) { e.runAll() }))
		return
	}
	r.ws = ws
	for _, b := range e.bindings {
		r.watch(e, b)
	}
}

func (r *svelteReactor) watch(e *engine, b *Binding) {
	if r.ws == nil || b.apply == nil {
		return
	}
	for _, dep := range b.deps {
		// Subscribe runs immediately with the current value; the binding is
		// already applied so that first run changes nothing.
		r.subs.add(r.ws.Writable(dep).Subscribe(func(any) { e.run(b) }))
	}
}

func (r *svelteReactor) env(e *engine, b *Binding) map[string]any { return depsEnv(e.st, b.deps) }

func (r *svelteReactor) afterEvent(*engine) {}
func (r *svelteReactor) manual() bool       { return false }
func (r *svelteReactor) stop()              { r.subs.stop() }

// angularReactor does not observe the store. Bindings are re-applied by
// Update, which the engine calls after its own event handlers and the
// runtime calls after asynchronous completions.
type angularReactor struct{}

func (angularReactor) start(*engine)                            {}
func (angularReactor) watch(*engine, *Binding)                  {}
func (angularReactor) env(e *engine, _ *Binding) map[string]any { return e.st.GetAll() }
func (angularReactor) afterEvent(e *engine)                     { e.Update() }
func (angularReactor) manual() bool                             { return true }
func (angularReactor) stop()                                    {}
