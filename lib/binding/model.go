package binding

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/expression"
)

// modelKind is how a form control exchanges its value with state.
type modelKind int

const (
	modelText modelKind = iota
	modelNumber
	modelCheckbox
	modelRadio
	modelSelect
)

func modelKindOf(el *html.Node) modelKind {
	switch el.Data {
	case "select":
		return modelSelect
	case "textarea":
		return modelText
	}
	switch strings.ToLower(dom.AttrOr(el, "type", "text")) {
	case "checkbox":
		return modelCheckbox
	case "radio":
		return modelRadio
	case "number", "range":
		return modelNumber
	}
	return modelText
}

// event returns the DOM event the control reports changes with.
func (k modelKind) event() string {
	switch k {
	case modelCheckbox, modelRadio, modelSelect:
		return "change"
	}
	return "input"
}

// BindModel installs a two-way binding between a form control and the
// state path expr. A control is bound at most once; binding it again
// returns nil without error.
func (e *engine) BindModel(el *html.Node, expr string) (*Binding, error) {
	path := strings.TrimSpace(expr)
	if !expression.IsPath(path) {
		return nil, ErrModelTarget
	}
	if e.disposed {
		return nil, ErrDisposed
	}
	if e.st == nil {
		return nil, ErrNotInitialized
	}
	if !e.cfg.Document.Mark(el, ModelMarker) {
		return nil, nil
	}

	kind := modelKindOf(el)
	b := &Binding{Kind: Model, Element: el, Attr: firstName(e.prefixes, Model), Expr: path, Arg: kind.event()}
	b.apply = func() bool {
		v := expression.ResolvePath(e.env(b), path)
		switch kind {
		case modelCheckbox:
			if list, ok := v.([]any); ok {
				return dom.SetChecked(el, containsString(list, dom.AttrOr(el, "value", "on")))
			}
			return dom.SetChecked(el, expression.Truthy(v))
		case modelRadio:
			return dom.SetChecked(el, v != nil && expression.ToString(v) == dom.AttrOr(el, "value", "on"))
		}
		if v == nil {
			return dom.SetInputValue(el, "")
		}
		return dom.SetInputValue(el, expression.ToString(v))
	}

	off := e.cfg.Document.On(el, kind.event(), func(ev *dom.Event) {
		if e.disposed {
			return
		}
		current := expression.ResolvePath(e.st.GetAll(), path)
		var next any
		switch kind {
		case modelCheckbox:
			on := dom.Checked(el)
			if list, ok := current.([]any); ok {
				next = toggleMember(list, dom.AttrOr(el, "value", "on"), on)
			} else {
				next = on
			}
		case modelRadio:
			if !dom.Checked(el) {
				return
			}
			next = dom.AttrOr(el, "value", "on")
		case modelNumber:
			raw := ev.Value
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				next = f
			} else {
				next = raw
			}
		default:
			next = ev.Value
			if kind == modelSelect && next == "" {
				next = dom.InputValue(el)
			}
		}
		e.writePath(path, next)
		e.react.afterEvent(e)
	})
	b.cleanups = append(b.cleanups, off, func() { e.cfg.Document.Unmark(el, ModelMarker) })
	return e.add(b)
}

// writePath sets a dotted state path, copying each nested map on the way
// down so earlier snapshots stay untouched.
func (e *engine) writePath(path string, value any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		e.st.Set(head, value)
		return
	}
	e.st.Set(head, setIn(e.st.Get(head), strings.Split(rest, "."), value))
}

func setIn(cur any, segs []string, value any) any {
	m, _ := cur.(map[string]any)
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if len(segs) == 1 {
		out[segs[0]] = value
	} else {
		out[segs[0]] = setIn(out[segs[0]], segs[1:], value)
	}
	return out
}

func containsString(list []any, s string) bool {
	for _, v := range list {
		if expression.ToString(v) == s {
			return true
		}
	}
	return false
}

func toggleMember(list []any, s string, on bool) []any {
	out := make([]any, 0, len(list)+1)
	for _, v := range list {
		if expression.ToString(v) != s {
			out = append(out, v)
		}
	}
	if on {
		out = append(out, s)
	}
	return out
}
