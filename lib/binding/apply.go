package binding

import (
	"sort"

	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/expression"
)

func (e *engine) BindText(el *html.Node, expr string) (*Binding, error) {
	b := &Binding{Kind: Text, Element: el, Attr: firstName(e.prefixes, Text), Expr: expr}
	b.apply = func() bool {
		return dom.SetText(el, e.cfg.Evaluator.String(expr, e.env(b)))
	}
	return e.add(b)
}

func (e *engine) BindHTML(el *html.Node, expr string) (*Binding, error) {
	b := &Binding{Kind: HTML, Element: el, Attr: firstName(e.prefixes, HTML), Expr: expr}
	b.apply = func() bool {
		changed, err := dom.SetInnerHTML(el, e.cfg.Evaluator.String(expr, e.env(b)))
		if err != nil {
			e.cfg.Logger.Debug("html binding failed")
		}
		return changed
	}
	return e.add(b)
}

// BindShow hides the element with display:none when expr is falsy and
// restores its original display value otherwise.
func (e *engine) BindShow(el *html.Node, expr string) (*Binding, error) {
	original, _ := dom.StyleProp(el, "display")
	if original == "none" {
		original = ""
	}
	b := &Binding{Kind: Show, Element: el, Attr: firstName(e.prefixes, Show), Expr: expr}
	b.apply = func() bool {
		if e.cfg.Evaluator.Bool(expr, e.env(b)) {
			return dom.SetStyleProp(el, "display", original)
		}
		return dom.SetStyleProp(el, "display", "none")
	}
	return e.add(b)
}

// BindIf removes the element from the tree while expr is falsy, leaving a
// comment placeholder at its position, and reinserts it there when expr
// becomes truthy.
func (e *engine) BindIf(el *html.Node, expr string) (*Binding, error) {
	b := &Binding{Kind: If, Element: el, Attr: firstName(e.prefixes, If), Expr: expr}
	b.placeholder = &html.Node{Type: html.CommentNode, Data: " " + b.Attr + ": " + expr + " "}
	b.apply = func() bool {
		show := e.cfg.Evaluator.Bool(expr, e.env(b))
		ph := b.placeholder
		switch {
		case show && ph.Parent != nil:
			ph.Parent.InsertBefore(el, ph)
			ph.Parent.RemoveChild(ph)
			return true
		case !show && el.Parent != nil && ph.Parent == nil:
			el.Parent.InsertBefore(ph, el)
			el.Parent.RemoveChild(el)
			return true
		}
		return false
	}
	b.cleanups = append(b.cleanups, func() {
		// Leave the element in the tree on teardown.
		if ph := b.placeholder; ph.Parent != nil {
			ph.Parent.InsertBefore(el, ph)
			ph.Parent.RemoveChild(ph)
		}
	})
	return e.add(b)
}

// BindAttr sets attr from expr: nil and false remove it, true sets it
// empty, anything else sets its string form.
func (e *engine) BindAttr(el *html.Node, attr, expr string) (*Binding, error) {
	name, mods := splitModifiers(attr)
	b := &Binding{Kind: Bind, Element: el, Attr: firstName(e.prefixes, Bind) + attr, Expr: expr, Arg: name, Modifiers: mods}
	b.apply = func() bool {
		switch v := e.cfg.Evaluator.Evaluate(expr, e.env(b)).(type) {
		case nil:
			return dom.RemoveAttr(el, name)
		case bool:
			if !v {
				return dom.RemoveAttr(el, name)
			}
			return dom.SetAttr(el, name, "")
		default:
			return dom.SetAttr(el, name, expression.ToString(v))
		}
	}
	return e.add(b)
}

// BindClass toggles classes from a class map. Classes the binding added
// earlier are removed when they drop out of the map; static classes are
// left alone.
func (e *engine) BindClass(el *html.Node, expr string) (*Binding, error) {
	static := make(map[string]bool)
	for _, c := range dom.Classes(el) {
		static[c] = true
	}
	added := make(map[string]bool)
	b := &Binding{Kind: Class, Element: el, Attr: firstName(e.prefixes, Class), Expr: expr}
	b.apply = func() bool {
		want := e.cfg.Evaluator.Classes(expr, e.env(b))
		changed := false
		for _, c := range sortedBoolKeys(want) {
			if want[c] {
				changed = dom.SetClass(el, c, true) || changed
				if !static[c] {
					added[c] = true
				}
			} else if !static[c] || added[c] {
				changed = dom.SetClass(el, c, false) || changed
				delete(added, c)
			}
		}
		for _, c := range sortedBoolKeys(added) {
			if _, ok := want[c]; !ok {
				changed = dom.SetClass(el, c, false) || changed
				delete(added, c)
			}
		}
		return changed
	}
	return e.add(b)
}

// BindStyle sets inline style properties from a style map, restoring the
// original value of properties that drop out of the map.
func (e *engine) BindStyle(el *html.Node, expr string) (*Binding, error) {
	_, original := dom.Style(el)
	set := make(map[string]bool)
	b := &Binding{Kind: Style, Element: el, Attr: firstName(e.prefixes, Style), Expr: expr}
	b.apply = func() bool {
		want := e.cfg.Evaluator.Styles(expr, e.env(b))
		changed := false
		props := make([]string, 0, len(want))
		for p := range want {
			props = append(props, p)
		}
		sort.Strings(props)
		for _, p := range props {
			changed = dom.SetStyleProp(el, p, want[p]) || changed
			set[p] = true
		}
		for _, p := range sortedBoolKeys(set) {
			if _, ok := want[p]; !ok {
				changed = dom.SetStyleProp(el, p, original[p]) || changed
				delete(set, p)
			}
		}
		return changed
	}
	return e.add(b)
}

func firstName(p Prefixes, k Kind) string {
	if names := p[k]; len(names) > 0 {
		return names[0]
	}
	return string(k)
}

func sortedBoolKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
