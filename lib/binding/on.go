package binding

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
)

// Event modifiers.
const (
	ModStop    = "stop"
	ModOnce    = "once"
	ModSelf    = "self"
	ModPrevent = "prevent"
)

func splitModifiers(s string) (string, []string) {
	parts := strings.Split(s, ".")
	return parts[0], parts[1:]
}

func hasModifier(mods []string, m string) bool {
	for _, x := range mods {
		if x == m {
			return true
		}
	}
	return false
}

// BindOn runs the statement list expr against the engine's scope whenever
// event fires on el. event may carry modifiers: click.stop.once.
// $event is visible to the statements as {type, value, detail}.
func (e *engine) BindOn(el *html.Node, event, expr string) (*Binding, error) {
	if e.cfg.Scope == nil {
		return nil, ErrNoScope
	}
	name, mods := splitModifiers(event)
	b := &Binding{Kind: On, Element: el, Attr: firstName(e.prefixes, On) + event, Expr: expr, Arg: name, Modifiers: mods}

	var off func()
	off = e.cfg.Document.On(el, name, func(ev *dom.Event) {
		if e.disposed {
			return
		}
		if hasModifier(mods, ModSelf) && ev.Target != el {
			return
		}
		if hasModifier(mods, ModStop) {
			ev.StopPropagation()
		}
		if hasModifier(mods, ModOnce) {
			off()
		}
		locals := map[string]any{
			"$event": map[string]any{"type": ev.Type, "value": ev.Value, "detail": ev.Detail},
		}
		if err := e.cfg.Evaluator.Run(expr, e.cfg.Scope, locals); err != nil {
			e.cfg.Logger.Warn("event handler failed",
				zap.String("event", name),
				zap.String("expr", expr),
				zap.Error(err),
			)
		}
		e.react.afterEvent(e)
	})
	b.cleanups = append(b.cleanups, off)
	return e.add(b)
}
