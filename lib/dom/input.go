package dom

import "golang.org/x/net/html"

// The methods below simulate user interaction. Each runs in its own turn.

// Click dispatches a click event on n.
func (d *Document) Click(n *html.Node) {
	d.Do(func() {
		d.Dispatch(n, &Event{Type: "click"})
	})
}

// Type sets the value of a text-like field and dispatches input.
func (d *Document) Type(n *html.Node, value string) {
	d.Do(func() {
		SetInputValue(n, value)
		d.Dispatch(n, &Event{Type: "input", Value: value})
	})
}

// Select sets the value of a select (or any field) and dispatches change.
func (d *Document) Select(n *html.Node, value string) {
	d.Do(func() {
		SetInputValue(n, value)
		d.Dispatch(n, &Event{Type: "change", Value: value})
	})
}

// Check toggles a checkbox or radio and dispatches change.
func (d *Document) Check(n *html.Node, on bool) {
	d.Do(func() {
		SetChecked(n, on)
		d.Dispatch(n, &Event{Type: "change", Value: InputValue(n)})
	})
}

// Trigger dispatches an arbitrary event with detail on n.
func (d *Document) Trigger(n *html.Node, typ string, detail any) {
	d.Do(func() {
		d.Dispatch(n, &Event{Type: typ, Detail: detail})
	})
}
