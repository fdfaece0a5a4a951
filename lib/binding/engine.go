package binding

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/store"
)

// RootAttr marks a component root. Nested roots are bound by their own
// component and skipped by the enclosing scan.
const RootAttr = "data-accelade"

// reactor is the per-framework reaction strategy.
type reactor interface {
	// start is called once after Init has bound and applied everything.
	start(e *engine)
	// watch is called for each binding created after start.
	watch(e *engine, b *Binding)
	// env returns the evaluation environment for b.
	env(e *engine, b *Binding) map[string]any
	// afterEvent runs once an event handler has finished.
	afterEvent(e *engine)
	manual() bool
	stop()
}

type engine struct {
	framework string
	cfg       Config
	prefixes  Prefixes
	react     reactor

	root      *html.Node
	st        store.Store
	bindings  []*Binding
	started   bool
	disposed  bool
	mutations atomic.Uint64
}

func newEngine(framework string, cfg Config, r reactor) *engine {
	return &engine{framework: framework, cfg: cfg, prefixes: PrefixesFor(framework), react: r}
}

func (e *engine) Framework() string  { return e.framework }
func (e *engine) Prefixes() Prefixes { return e.prefixes }
func (e *engine) Manual() bool       { return e.react.manual() }
func (e *engine) Mutations() uint64  { return e.mutations.Load() }

func (e *engine) Bindings() []*Binding {
	return append([]*Binding(nil), e.bindings...)
}

func (e *engine) Init(root *html.Node, st store.Store) error {
	if e.disposed {
		return ErrDisposed
	}
	e.root, e.st = root, st

	var cloaked []*html.Node
	for _, el := range e.scan(root) {
		for _, attr := range dom.AttrKeys(el) {
			kind, arg, mods, ok := e.prefixes.Match(attr)
			if !ok {
				continue
			}
			expr, _ := dom.Attr(el, attr)
			var err error
			switch kind {
			case Text:
				_, err = e.BindText(el, expr)
			case HTML:
				_, err = e.BindHTML(el, expr)
			case Show:
				_, err = e.BindShow(el, expr)
			case If:
				_, err = e.BindIf(el, expr)
			case Model:
				_, err = e.BindModel(el, expr)
			case Class:
				_, err = e.BindClass(el, expr)
			case Style:
				_, err = e.BindStyle(el, expr)
			case Bind:
				_, err = e.BindAttr(el, joinArg(arg, mods), expr)
			case On:
				_, err = e.BindOn(el, joinArg(arg, mods), expr)
			case Cloak:
				cloaked = append(cloaked, el)
			}
			if err != nil {
				e.cfg.Logger.Warn("binding skipped",
					zap.String("attr", attr),
					zap.String("expr", expr),
					zap.Error(err),
				)
			}
		}
	}

	e.started = true
	e.react.start(e)
	for _, el := range cloaked {
		for _, name := range e.prefixes[Cloak] {
			dom.RemoveAttr(el, name)
		}
	}
	return nil
}

func joinArg(arg string, mods []string) string {
	if len(mods) == 0 {
		return arg
	}
	return arg + "." + strings.Join(mods, ".")
}

// scan returns root and its element descendants in document order, skipping
// nested component roots and non-rendered content.
func (e *engine) scan(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !dom.IsElement(c) {
				continue
			}
			if dom.HasAttr(c, RootAttr) {
				continue
			}
			switch c.Data {
			case "script", "template", "style":
				continue
			}
			out = append(out, c)
			walk(c)
		}
	}
	if dom.IsElement(root) {
		out = append(out, root)
	}
	walk(root)
	return out
}

// add registers b, applies it once and, after Init, starts reacting to it.
func (e *engine) add(b *Binding) (*Binding, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if e.st == nil {
		return nil, ErrNotInitialized
	}
	if b.apply != nil {
		b.deps = expression.Identifiers(b.Expr)
		e.run(b)
	}
	e.bindings = append(e.bindings, b)
	if e.started {
		e.react.watch(e, b)
	}
	return b, nil
}

// run applies b and counts DOM changes.
func (e *engine) run(b *Binding) {
	if b.apply == nil || e.disposed {
		return
	}
	if b.apply() {
		e.mutations.Add(1)
	}
}

func (e *engine) runAll() {
	for _, b := range e.bindings {
		e.run(b)
	}
}

func (e *engine) env(b *Binding) map[string]any {
	return e.react.env(e, b)
}

func (e *engine) Update() {
	if e.disposed || e.st == nil {
		return
	}
	e.runAll()
}

func (e *engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.react.stop()
	for _, b := range e.bindings {
		for _, c := range b.cleanups {
			c()
		}
		b.cleanups = nil
	}
}

// depsEnv builds an environment holding only the keys b reads, fetched one
// by one so tracking stores observe each read.
func depsEnv(st store.Store, deps []string) map[string]any {
	env := make(map[string]any, len(deps))
	for _, k := range deps {
		env[k] = st.Get(k)
	}
	return env
}
