// Package binding maps declarative DOM attributes onto live reads and writes
// of a component's state.
//
// An Engine scans a component root once, creates one Binding per
// recognized attribute and re-applies bindings as state changes. Elements
// added after the scan are not bound. Each framework backend has its own
// attribute prefixes and its own way of reacting:
//
//	vanilla  a-*           any change re-applies every binding
//	vue      v-*, :, @     one dependency-tracked effect per binding
//	react    data-state-*  one render pass per state snapshot version
//	svelte   s-*, on:      per-binding subscriptions to the writables it reads
//	angular  ng-*          explicit change detection through Update
//
// Applying a binding whose result has not changed leaves the DOM untouched.
package binding

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/logging"
	"github.com/pthm/accelade/lib/store"
)

// Kind is a binding type.
type Kind string

const (
	Text  Kind = "text"
	HTML  Kind = "html"
	Show  Kind = "show"
	If    Kind = "if"
	Model Kind = "model"
	Class Kind = "class"
	Style Kind = "style"
	Bind  Kind = "bind"
	On    Kind = "on"
	Cloak Kind = "cloak"
)

// Kinds lists every binding kind in scan priority order.
var Kinds = []Kind{If, Show, Text, HTML, Model, Class, Style, Bind, On, Cloak}

// ModelMarker is the per-element marker that keeps a model binding from
// being installed twice.
const ModelMarker = "accelade:model"

var (
	// ErrDisposed is returned when binding on a disposed engine.
	ErrDisposed = errors.New("binding: engine disposed")

	// ErrNotInitialized is returned when binding before Init.
	ErrNotInitialized = errors.New("binding: engine not initialized")

	// ErrModelTarget is returned for a model binding whose expression is not
	// a property path.
	ErrModelTarget = errors.New("binding: model expression must be a property path")

	// ErrNoScope is returned for event bindings on an engine without a Scope.
	ErrNoScope = errors.New("binding: no scope for event handlers")
)

// Binding is one declarative attribute bound to an element.
type Binding struct {
	Kind    Kind
	Element *html.Node
	// Attr is the attribute name as written.
	Attr string
	Expr string
	// Arg is the attribute name for bind bindings and the event name for
	// on bindings.
	Arg string
	// Modifiers are the dot-separated suffixes of Arg (click.stop.once).
	Modifiers []string

	apply       func() bool
	cleanups    []func()
	placeholder *html.Node
	deps        []string
}

// Placeholder returns the comment node standing in for a removed
// conditional element, or nil for other kinds.
func (b *Binding) Placeholder() *html.Node {
	return b.placeholder
}

// Engine binds one component root to its store.
type Engine interface {
	// Framework reports the engine's framework tag.
	Framework() string
	// Prefixes returns the attribute prefixes the engine scans for.
	Prefixes() Prefixes
	// Init scans root, binds every recognized attribute and applies all
	// bindings once. It must be called from the document turn.
	Init(root *html.Node, st store.Store) error

	BindText(el *html.Node, expr string) (*Binding, error)
	BindHTML(el *html.Node, expr string) (*Binding, error)
	BindShow(el *html.Node, expr string) (*Binding, error)
	BindIf(el *html.Node, expr string) (*Binding, error)
	BindModel(el *html.Node, expr string) (*Binding, error)
	BindAttr(el *html.Node, attr, expr string) (*Binding, error)
	BindOn(el *html.Node, event, expr string) (*Binding, error)
	BindClass(el *html.Node, expr string) (*Binding, error)
	BindStyle(el *html.Node, expr string) (*Binding, error)

	// Update re-applies every binding.
	Update()
	// Manual reports whether the engine reacts to state changes only when
	// Update is called.
	Manual() bool
	// Bindings returns the live bindings in creation order.
	Bindings() []*Binding
	// Mutations counts DOM changes made by binding application.
	Mutations() uint64
	// Dispose removes listeners and subscriptions. Later calls are no-ops.
	Dispose()
}

// Config carries an engine's collaborators.
type Config struct {
	Document  *dom.Document
	Evaluator *expression.Evaluator
	// Scope runs event handlers. Without one, on bindings are skipped.
	Scope  expression.Scope
	Logger *zap.Logger
}

// New constructs the engine for framework. An empty tag selects vanilla.
func New(framework string, cfg Config) (Engine, error) {
	if cfg.Document == nil {
		return nil, errors.New("binding: document is required")
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = expression.New()
	}
	cfg.Logger = logging.Or(cfg.Logger).Named("binding")

	switch framework {
	case "", store.Vanilla:
		return newEngine(store.Vanilla, cfg, &vanillaReactor{}), nil
	case store.Vue:
		return newEngine(store.Vue, cfg, &vueReactor{}), nil
	case store.React:
		return newEngine(store.React, cfg, &reactReactor{}), nil
	case store.Svelte:
		return newEngine(store.Svelte, cfg, &svelteReactor{}), nil
	case store.Angular:
		return newEngine(store.Angular, cfg, &angularReactor{}), nil
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnknownFramework, framework)
}
