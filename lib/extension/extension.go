// Package extension holds the optional feature modules a component root
// opts into with data-accelade-<feature> markers.
//
// Features attach after the component's bindings are live. Each one reads
// its configuration from the root's attributes, writes into the component
// store and may define methods that event handlers and scripts can call.
package extension

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/bus"
	"github.com/pthm/accelade/lib/deferred"
	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/store"
)

// MarkerPrefix precedes a feature name in its activation attribute.
const MarkerPrefix = "data-accelade-"

// ErrConfig wraps invalid feature configuration.
var ErrConfig = errors.New("extension: invalid configuration")

// Method is a callable a feature contributes to the component.
type Method func(args []any) (any, error)

// Context is what a feature attaches to.
type Context struct {
	ID       string
	Root     *html.Node
	Document *dom.Document
	Store    store.Store
	Bus      *bus.Bus
	Logger   *zap.Logger

	// Flash is the page-level flash data.
	Flash map[string]any

	// LoaderOptions are passed to every deferred loader.
	LoaderOptions []deferred.Option

	// Define registers a component method.
	Define func(name string, fn Method)

	// Refresh re-applies bindings when the engine does not react on its
	// own. It must be called from the document turn.
	Refresh func()
}

// Attr reads a root attribute.
func (c *Context) Attr(name string) (string, bool) {
	return dom.Attr(c.Root, name)
}

// Emit dispatches <feature>:<name> on the root and its document mirror.
// It must be called from the document turn.
func (c *Context) Emit(feature, name string, detail any) {
	c.Document.Emit(c.Root, feature, name, detail)
}

func (c *Context) define(name string, fn Method) {
	if c.Define != nil {
		c.Define(name, fn)
	}
}

func (c *Context) refresh() {
	if c.Refresh != nil {
		c.Refresh()
	}
}

// Feature is one optional module.
type Feature interface {
	// Name is the marker suffix: data-accelade-<Name>.
	Name() string
	// Attach wires the feature into the component and returns its cleanup.
	Attach(ctx *Context) (func(), error)
}

// Defaults returns the built-in features. Tooltip, draggable, modal and
// transition are recognized but left to external collaborators.
func Defaults() []Feature {
	return []Feature{
		Toggle{},
		Defer{},
		Flash{},
		Echo{},
		Marker("tooltip"),
		Marker("draggable"),
		Marker("modal"),
		Marker("transition"),
	}
}

// Active reports whether root opts into f.
func Active(root *html.Node, f Feature) bool {
	return dom.HasAttr(root, MarkerPrefix+f.Name())
}

// AttachAll attaches every feature root opts into, in order. A feature that
// fails is logged and skipped. The returned cleanup releases the attached
// features in reverse order.
func AttachAll(ctx *Context, features []Feature) func() {
	var cleanups []func()
	for _, f := range features {
		if !Active(ctx.Root, f) {
			continue
		}
		cleanup, err := f.Attach(ctx)
		if err != nil {
			ctx.Logger.Warn("feature skipped",
				zap.String("feature", f.Name()),
				zap.Error(err),
			)
			continue
		}
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}
	}
	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

// Marker is a feature that is recognized but handled elsewhere.
type Marker string

func (m Marker) Name() string { return string(m) }

func (m Marker) Attach(ctx *Context) (func(), error) {
	ctx.Logger.Debug("feature marker left to collaborator", zap.String("feature", string(m)))
	return nil, nil
}

// splitList splits a comma-separated attribute value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configError(feature, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConfig, feature, fmt.Sprintf(format, args...))
}
