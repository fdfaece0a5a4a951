package extension

import (
	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/store"
)

// Flash levels.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// FlashLevels lists the levels in display order.
var FlashLevels = []string{FlashSuccess, FlashError, FlashWarning, FlashInfo}

// FlashKey is the state key the flash data is seeded into.
const FlashKey = "flash"

// Flash exposes the page's one-time flash data to a component:
//
//	<div data-accelade data-accelade-flash>
//	  <p a-show="flash.success" a-text="flash.success"></p>
//	  <button a-on:click="clearFlash('success')">dismiss</button>
//
// It defines the methods hasFlash(key?) and clearFlash(key?).
type Flash struct{}

func (Flash) Name() string { return "flash" }

func (Flash) Attach(ctx *Context) (func(), error) {
	data := make(map[string]any, len(ctx.Flash))
	for k, v := range ctx.Flash {
		data[k] = v
	}
	ctx.Store.Set(FlashKey, data, store.NoSync())

	current := func() map[string]any {
		m, _ := ctx.Store.Get(FlashKey).(map[string]any)
		return m
	}
	ctx.define("hasFlash", func(args []any) (any, error) {
		if len(args) == 0 {
			return len(current()) > 0, nil
		}
		key := expression.ToString(args[0])
		return expression.Truthy(current()[key]), nil
	})
	ctx.define("clearFlash", func(args []any) (any, error) {
		next := make(map[string]any)
		if len(args) > 0 {
			key := expression.ToString(args[0])
			for k, v := range current() {
				if k != key {
					next[k] = v
				}
			}
		}
		ctx.Store.Set(FlashKey, next, store.NoSync())
		ctx.refresh()
		return nil, nil
	})
	return nil, nil
}
