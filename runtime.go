package accelade

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/actions"
	"github.com/pthm/accelade/lib/binding"
	"github.com/pthm/accelade/lib/bus"
	"github.com/pthm/accelade/lib/deferred"
	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/encoding"
	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/extension"
	"github.com/pthm/accelade/lib/globalstore"
	"github.com/pthm/accelade/lib/logging"
	"github.com/pthm/accelade/lib/sandbox"
	"github.com/pthm/accelade/lib/storage"
	"github.com/pthm/accelade/lib/store"
	"github.com/pthm/accelade/lib/syncer"
)

// Runtime hydrates the component roots of one page.
//
// Every state change, binding update and event handler runs inside the
// document's turn (dom.Document.Do). Public methods take the turn
// themselves and must not be called from inside it.
type Runtime struct {
	doc  *dom.Document
	opts options

	logger    *zap.Logger
	evaluator *expression.Evaluator
	channel   *syncer.Channel
	sandbox   *sandbox.Sandbox
	encoder   *encoding.Encoder
	globals   *globalstore.Registry
	session   storage.Storage
	local     storage.Storage
	owned     []storage.Storage
	bus       *bus.Bus
	registry  *Registry

	closeOnce sync.Once
	closeErr  error
}

// New creates a Runtime for doc. Nothing is hydrated until Hydrate or
// Mount is called.
func New(doc *dom.Document, opts ...Option) (*Runtime, error) {
	if doc == nil {
		return nil, errors.New("accelade: document is required")
	}
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.features == nil {
		o.features = extension.Defaults()
	}

	logger := logging.Or(o.logger)
	rt := &Runtime{
		doc:      doc,
		opts:     o,
		logger:   logger.Named("runtime"),
		globals:  o.globals,
		session:  o.session,
		local:    o.local,
		bus:      bus.New(),
		registry: NewRegistry(),
	}

	rt.evaluator = expression.New(
		expression.WithEngine(o.cfg.ExpressionEngine),
		expression.WithLogger(logger.Named("expression")),
	)

	syncOpts := []syncer.Option{
		syncer.WithUpdateURL(o.cfg.UpdateURL),
		syncer.WithBatchUpdateURL(o.cfg.BatchUpdateURL),
		syncer.WithCSRFToken(o.cfg.CSRFToken),
		syncer.WithDebounce(o.cfg.Debounce),
		syncer.WithLogger(logger),
	}
	if o.client != nil {
		syncOpts = append(syncOpts, syncer.WithHTTPClient(o.client))
	}
	rt.channel = syncer.New(syncOpts...)

	rt.sandbox = sandbox.New(
		sandbox.WithTimeout(o.cfg.ScriptTimeout),
		sandbox.WithLogger(logger),
	)

	if o.cfg.SealKey != "" {
		enc, err := encoding.NewEncoder([]byte(o.cfg.SealKey))
		if err != nil {
			return nil, fmt.Errorf("%w: seal key: %v", ErrInvalidConfig, err)
		}
		rt.encoder = enc
	}

	if rt.globals == nil {
		rt.globals = globalstore.New()
	}
	if rt.session == nil {
		rt.session = storage.NewMemory()
		rt.owned = append(rt.owned, rt.session)
	}
	if rt.local == nil {
		if path := o.cfg.LocalStoragePath; path != "" {
			db, err := storage.OpenSQLite(path)
			if err != nil {
				rt.closeOwned()
				return nil, err
			}
			rt.local = db
		} else {
			rt.local = storage.NewMemory()
		}
		rt.owned = append(rt.owned, rt.local)
	}
	return rt, nil
}

// Document returns the page.
func (rt *Runtime) Document() *dom.Document { return rt.doc }

// Registry returns the live component registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Bus returns the page event bus behind $emit, $on and the echo extension.
func (rt *Runtime) Bus() *bus.Bus { return rt.bus }

// Globals returns the shared store registry.
func (rt *Runtime) Globals() *globalstore.Registry { return rt.globals }

// Config returns the effective configuration.
func (rt *Runtime) Config() Config { return rt.opts.cfg }

// Get returns the live component with id.
func (rt *Runtime) Get(id string) (*Instance, bool) {
	return rt.registry.Get(id)
}

// Roots returns every component root under n in document order, nested
// roots included.
func Roots(n *html.Node) []*html.Node {
	return dom.FindAll(n, func(el *html.Node) bool {
		return dom.HasAttr(el, AttrRoot)
	})
}

// Hydrate mounts every root in the document. A root that fails is logged
// and skipped; its error is part of the joined error returned alongside
// the components that did mount.
func (rt *Runtime) Hydrate() ([]*Instance, error) {
	var (
		instances []*Instance
		errs      []error
	)
	rt.doc.Do(func() {
		for _, root := range Roots(rt.doc.Root()) {
			inst, err := rt.mount(root)
			if err != nil {
				rt.logger.Warn("component skipped",
					zap.String("id", dom.AttrOr(root, "id", "")),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}
			instances = append(instances, inst)
		}
	})
	return instances, errors.Join(errs...)
}

// Mount hydrates a single root.
func (rt *Runtime) Mount(root *html.Node) (*Instance, error) {
	var (
		inst *Instance
		err  error
	)
	rt.doc.Do(func() {
		inst, err = rt.mount(root)
	})
	return inst, err
}

func (rt *Runtime) mount(root *html.Node) (*Instance, error) {
	if root == nil || !dom.HasAttr(root, AttrRoot) {
		return nil, ErrNoRoot
	}
	id := strings.TrimSpace(dom.AttrOr(root, "id", ""))
	if id == "" {
		id = uuid.NewString()
		dom.SetAttr(root, "id", id)
	}
	if rt.registry.Has(id) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	framework := strings.TrimSpace(dom.AttrOr(root, AttrFramework, rt.opts.cfg.Framework))
	log := rt.logger.With(zap.String("component", id), zap.String("framework", framework))

	res := rt.resolveState(root, log)
	inst := &Instance{
		rt:        rt,
		id:        id,
		root:      root,
		framework: framework,
		syncKeys:  ParseList(dom.AttrOr(root, AttrSync, "")),
		logger:    log,
		features:  make(map[string]extension.Method),
	}

	st, err := store.New(framework, store.Config{SyncKeys: inst.syncKeys, Hook: syncHook{inst}})
	if err != nil {
		return nil, err
	}
	st.Init(res.state)
	inst.store = st
	inst.cleanups.add(st.Dispose)

	engine, err := binding.New(framework, binding.Config{
		Document:  rt.doc,
		Evaluator: rt.evaluator,
		Scope:     scope{inst},
		Logger:    log,
	})
	if err != nil {
		inst.cleanups.run()
		return nil, err
	}
	inst.actions = actions.NewExtended(st, res.state)
	if err := engine.Init(root, st); err != nil {
		inst.cleanups.run()
		return nil, err
	}
	inst.engine = engine
	inst.cleanups.add(engine.Dispose)
	inst.cleanups.add(func() { rt.channel.CancelComponent(id) })

	rt.runScripts(inst)
	inst.cleanups.add(extension.AttachAll(rt.extensionContext(inst), rt.opts.features))
	rt.persist(inst, res)
	engine.Update()

	if err := rt.registry.add(inst); err != nil {
		inst.dispose()
		return nil, err
	}
	inst.cleanups.add(func() { rt.registry.remove(inst) })

	log.Debug("component hydrated",
		zap.Int("bindings", len(engine.Bindings())),
		zap.Strings("sync", inst.syncKeys),
	)
	rt.doc.Emit(root, "component", "hydrated", map[string]any{"id": id})
	return inst, nil
}

// runScripts executes the root's own inline scripts. A failing script is
// logged and the component hydrates without its methods.
func (rt *Runtime) runScripts(inst *Instance) {
	caps := sandbox.Capabilities{
		State:    inst.store,
		Actions:  inst.actions,
		Navigate: rt.navigate,
		Emit: func(name string, payload any) {
			rt.bus.Emit(name, payload)
		},
		On: func(name string, fn func(payload any)) func() {
			return rt.bus.On(name, fn)
		},
	}
	for _, script := range ownScripts(inst.root) {
		methods, err := rt.sandbox.Run(dom.TextContent(script), caps)
		if err != nil {
			inst.logger.Warn("script skipped", zap.Error(err))
			continue
		}
		inst.scripts = append(inst.scripts, methods)
		inst.cleanups.add(methods.Dispose)
	}
}

func (rt *Runtime) navigate(url string) {
	if rt.opts.navigator == nil {
		rt.logger.Debug("navigation ignored: no navigator", zap.String("url", url))
		return
	}
	rt.opts.navigator.Navigate(url)
}

// ownScripts returns the script blocks of root that are not inside a
// nested component root.
func ownScripts(root *html.Node) []*html.Node {
	return dom.FindAll(root, func(n *html.Node) bool {
		if n.Data != "script" || dom.AttrOr(n, "type", "") != ScriptType {
			return false
		}
		for p := n.Parent; p != nil; p = p.Parent {
			if p == root {
				return true
			}
			if dom.HasAttr(p, AttrRoot) {
				return false
			}
		}
		return false
	})
}

func (rt *Runtime) extensionContext(inst *Instance) *extension.Context {
	loaderOpts := []deferred.Option{
		deferred.WithScheduler(rt.doc.Do),
		deferred.WithCSRFToken(rt.opts.cfg.CSRFToken),
		deferred.WithLogger(inst.logger),
	}
	if rt.opts.client != nil {
		loaderOpts = append(loaderOpts, deferred.WithHTTPClient(rt.opts.client))
	}
	return &extension.Context{
		ID:            inst.id,
		Root:          inst.root,
		Document:      rt.doc,
		Store:         inst.store,
		Bus:           rt.bus,
		Logger:        inst.logger,
		Flash:         rt.opts.cfg.Flash,
		LoaderOptions: loaderOpts,
		Define: func(name string, fn extension.Method) {
			inst.features[name] = fn
		},
		Refresh: inst.refresh,
	}
}

// persist wires write-through to the global store and browser storage.
func (rt *Runtime) persist(inst *Instance, res resolved) {
	st := inst.store
	if entry := res.global; entry != nil {
		inst.cleanups.add(st.Subscribe(func(value, _ any, key string) {
			entry.Set(key, value)
		}))
		inst.cleanups.add(entry.Subscribe(func(key string, value any) {
			if inst.Disposed() {
				return
			}
			st.Set(key, value, store.NoSync())
			inst.refresh()
		}))
	}
	save := func(scope, key string, to storage.Storage) {
		inst.cleanups.add(st.Subscribe(func(_, _ any, _ string) {
			if err := to.Save(key, st.GetAll()); err != nil {
				inst.logger.Warn("state not persisted",
					zap.String("scope", scope),
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}))
	}
	if res.session != "" {
		save("session", res.session, rt.session)
	}
	if res.local != "" {
		save("local", res.local, rt.local)
	}
}

// Seal produces a data-accelade-sealed value with the runtime's seal key.
func (rt *Runtime) Seal(state map[string]any, sensitive bool) (string, error) {
	if rt.encoder == nil {
		return "", fmt.Errorf("%w: no seal key", ErrInvalidConfig)
	}
	return rt.encoder.Seal(state, sensitive)
}

// Close disposes every component, stops the sync channel and closes the
// storage the runtime opened itself.
func (rt *Runtime) Close() error {
	rt.closeOnce.Do(func() {
		rt.doc.Do(func() {
			for _, id := range rt.registry.IDs() {
				if inst, ok := rt.registry.Get(id); ok {
					inst.dispose()
				}
			}
		})
		rt.channel.Close()
		rt.closeErr = rt.closeOwned()
	})
	return rt.closeErr
}

func (rt *Runtime) closeOwned() error {
	var errs []error
	for _, s := range rt.owned {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
