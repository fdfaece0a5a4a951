package extension

import (
	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/store"
)

// DefaultToggleKey is used when the toggle marker names no keys.
const DefaultToggleKey = "toggled"

// Toggle manages boolean open/closed keys:
//
//	<div data-accelade data-accelade-toggle="menu,details">
//
// Each key starts false unless the state already holds it. The methods
// toggle, show and hide take an optional key and default to the first.
type Toggle struct{}

func (Toggle) Name() string { return "toggle" }

func (Toggle) Attach(ctx *Context) (func(), error) {
	raw, _ := ctx.Attr(MarkerPrefix + "toggle")
	keys := splitList(raw)
	if len(keys) == 0 {
		keys = []string{DefaultToggleKey}
	}

	seed := make(map[string]any)
	for _, k := range keys {
		if ctx.Store.Get(k) == nil {
			seed[k] = false
		}
	}
	if len(seed) > 0 {
		ctx.Store.SetMany(seed, store.NoSync())
	}

	key := func(args []any) string {
		if len(args) > 0 {
			if k, ok := args[0].(string); ok && k != "" {
				return k
			}
		}
		return keys[0]
	}
	set := func(args []any, value func(any) bool) (any, error) {
		k := key(args)
		v := value(ctx.Store.Get(k))
		ctx.Store.Set(k, v)
		ctx.refresh()
		return v, nil
	}

	ctx.define("toggle", func(args []any) (any, error) {
		return set(args, func(cur any) bool { return !expression.Truthy(cur) })
	})
	ctx.define("show", func(args []any) (any, error) {
		return set(args, func(any) bool { return true })
	})
	ctx.define("hide", func(args []any) (any, error) {
		return set(args, func(any) bool { return false })
	})
	return nil, nil
}
