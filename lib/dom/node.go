package dom

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets an attribute, reporting whether the value changed.
func SetAttr(n *html.Node, key, val string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return false
			}
			n.Attr[i].Val = val
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return true
}

// RemoveAttr removes an attribute, reporting whether it was present.
func RemoveAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TextContent concatenates the text of n's descendants.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return sb.String()
}

// SetText replaces n's children with a single text node. It reports whether
// the text changed.
func SetText(n *html.Node, text string) bool {
	if n.FirstChild != nil && n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode {
		if n.FirstChild.Data == text {
			return false
		}
		n.FirstChild.Data = text
		return true
	}
	if n.FirstChild == nil && text == "" {
		return false
	}
	removeChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return true
}

// InnerHTML renders n's children.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// SetInnerHTML parses markup in the context of n and replaces its children.
// It reports whether the rendered content changed.
func SetInnerHTML(n *html.Node, markup string) (bool, error) {
	if InnerHTML(n) == markup {
		return false, nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	if ctx.DataAtom == 0 {
		ctx.DataAtom = atom.Div
		ctx.Data = "div"
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return false, err
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return true, nil
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Classes returns the element's class list.
func Classes(n *html.Node) []string {
	return strings.Fields(AttrOr(n, "class", ""))
}

// HasClass reports whether the element carries class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// SetClass adds or removes class, reporting whether the list changed.
func SetClass(n *html.Node, class string, on bool) bool {
	classes := Classes(n)
	idx := -1
	for i, c := range classes {
		if c == class {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		classes = append(classes, class)
	case !on && idx >= 0:
		classes = append(classes[:idx], classes[idx+1:]...)
	default:
		return false
	}
	if len(classes) == 0 {
		RemoveAttr(n, "class")
		return true
	}
	SetAttr(n, "class", strings.Join(classes, " "))
	return true
}

// Style parses the inline style attribute into property order and values.
func Style(n *html.Node) ([]string, map[string]string) {
	raw := AttrOr(n, "style", "")
	var order []string
	values := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(strings.ToLower(prop))
		if prop == "" {
			continue
		}
		if _, seen := values[prop]; !seen {
			order = append(order, prop)
		}
		values[prop] = strings.TrimSpace(val)
	}
	return order, values
}

// StyleProp returns a single inline style property.
func StyleProp(n *html.Node, prop string) (string, bool) {
	_, values := Style(n)
	v, ok := values[strings.ToLower(prop)]
	return v, ok
}

// SetStyleProp sets or, for an empty value, removes an inline style
// property. It reports whether the style attribute changed.
func SetStyleProp(n *html.Node, prop, val string) bool {
	prop = strings.ToLower(strings.TrimSpace(prop))
	order, values := Style(n)
	cur, ok := values[prop]
	if val == "" {
		if !ok {
			return false
		}
		delete(values, prop)
	} else {
		if ok && cur == val {
			return false
		}
		if !ok {
			order = append(order, prop)
		}
		values[prop] = val
	}
	writeStyle(n, order, values)
	return true
}

func writeStyle(n *html.Node, order []string, values map[string]string) {
	parts := make([]string, 0, len(values))
	for _, p := range order {
		if v, ok := values[p]; ok {
			parts = append(parts, p+": "+v)
		}
	}
	if len(parts) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", strings.Join(parts, "; "))
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's subtree.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// FindAll returns the elements under n (inclusive) matching pred.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if IsElement(c) && pred(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ByID returns the first element with the given id.
func ByID(n *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if IsElement(c) && AttrOr(c, "id", "") == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// AttrKeys returns n's attribute keys in a stable order.
func AttrKeys(n *html.Node) []string {
	keys := make([]string, 0, len(n.Attr))
	for _, a := range n.Attr {
		keys = append(keys, a.Key)
	}
	sort.Strings(keys)
	return keys
}

// InputValue returns the form value of an input-like element.
func InputValue(n *html.Node) string {
	if n.Data == "textarea" {
		return TextContent(n)
	}
	if n.Data == "select" {
		var selected, first string
		firstSet := false
		Walk(n, func(c *html.Node) bool {
			if IsElement(c) && c.Data == "option" {
				v := AttrOr(c, "value", TextContent(c))
				if !firstSet {
					first, firstSet = v, true
				}
				if HasAttr(c, "selected") {
					selected = v
				}
			}
			return true
		})
		if selected != "" {
			return selected
		}
		return first
	}
	return AttrOr(n, "value", "")
}

// SetInputValue writes the form value of an input-like element, reporting
// whether it changed.
func SetInputValue(n *html.Node, val string) bool {
	switch n.Data {
	case "textarea":
		return SetText(n, val)
	case "select":
		changed := false
		Walk(n, func(c *html.Node) bool {
			if IsElement(c) && c.Data == "option" {
				if AttrOr(c, "value", TextContent(c)) == val {
					changed = SetAttr(c, "selected", "") || changed
				} else {
					changed = RemoveAttr(c, "selected") || changed
				}
			}
			return true
		})
		return changed
	}
	return SetAttr(n, "value", val)
}

// SetChecked toggles the checked attribute.
func SetChecked(n *html.Node, on bool) bool {
	if on {
		return SetAttr(n, "checked", "")
	}
	return RemoveAttr(n, "checked")
}

// Checked reports whether the element is checked.
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}
