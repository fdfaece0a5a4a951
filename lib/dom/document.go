// Package dom is the document model the runtime hydrates.
//
// A Document wraps a parsed golang.org/x/net/html tree and adds what a
// browser would otherwise provide: event listeners, custom-event dispatch
// with a document-level mirror, per-element markers and a turn lock that
// serializes asynchronous completions (timers, network responses) with
// direct API calls.
package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Event is a dispatched DOM event.
type Event struct {
	Type string

	// Target is the element the event was dispatched on. It is nil for
	// events dispatched on the document itself.
	Target *html.Node

	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	// Detail carries custom-event data.
	Detail any

	// Value carries the new form value for input/change events.
	Value string

	stopped bool
}

// StopPropagation prevents the event from reaching ancestors and the document.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Listener handles a dispatched event.
type Listener func(*Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Document is a hydratable HTML document.
type Document struct {
	root *html.Node

	turn sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	listeners map[*html.Node]map[string][]listenerEntry
	document  map[string][]listenerEntry
	markers   map[*html.Node]map[string]struct{}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root), nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewDocument wraps an already-parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]listenerEntry),
		document:  make(map[string][]listenerEntry),
		markers:   make(map[*html.Node]map[string]struct{}),
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Do runs fn while holding the document turn. Entry points that arrive from
// outside the current turn (public API calls, timers, network completions)
// go through Do; code already running inside a turn must not call it again.
func (d *Document) Do(fn func()) {
	d.turn.Lock()
	defer d.turn.Unlock()
	fn()
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, taking the turn so the tree is not observed
// mid-mutation.
func (d *Document) String() string {
	var buf bytes.Buffer
	d.Do(func() {
		_ = html.Render(&buf, d.root)
	})
	return buf.String()
}

// On registers a listener for typ on node. A nil node registers on the
// document. The returned function removes the listener and is safe to call
// more than once.
func (d *Document) On(node *html.Node, typ string, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	entry := listenerEntry{id: id, fn: fn}
	if node == nil {
		d.document[typ] = append(d.document[typ], entry)
	} else {
		byType := d.listeners[node]
		if byType == nil {
			byType = make(map[string][]listenerEntry)
			d.listeners[node] = byType
		}
		byType[typ] = append(byType[typ], entry)
	}
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.off(node, typ, id) })
	}
}

func (d *Document) off(node *html.Node, typ string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node == nil {
		d.document[typ] = removeEntry(d.document[typ], id)
		return
	}
	byType := d.listeners[node]
	if byType == nil {
		return
	}
	byType[typ] = removeEntry(byType[typ], id)
	if len(byType[typ]) == 0 {
		delete(byType, typ)
	}
	if len(byType) == 0 {
		delete(d.listeners, node)
	}
}

func removeEntry(entries []listenerEntry, id uint64) []listenerEntry {
	for i, e := range entries {
		if e.id == id {
			out := make([]listenerEntry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...)
		}
	}
	return entries
}

// ListenerCount reports how many listeners are registered on node (nil for
// the document) across all event types.
func (d *Document) ListenerCount(node *html.Node) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	if node == nil {
		for _, entries := range d.document {
			n += len(entries)
		}
		return n
	}
	for _, entries := range d.listeners[node] {
		n += len(entries)
	}
	return n
}

func (d *Document) snapshot(node *html.Node, typ string) []listenerEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	var src []listenerEntry
	if node == nil {
		src = d.document[typ]
	} else if byType := d.listeners[node]; byType != nil {
		src = byType[typ]
	}
	if len(src) == 0 {
		return nil
	}
	out := make([]listenerEntry, len(src))
	copy(out, src)
	return out
}

// Dispatch delivers ev to target's listeners, then bubbles it through the
// ancestors and finally the document. A nil target dispatches on the
// document only.
func (d *Document) Dispatch(target *html.Node, ev *Event) {
	ev.Target = target
	for n := target; n != nil; n = n.Parent {
		for _, entry := range d.snapshot(n, ev.Type) {
			ev.CurrentTarget = n
			entry.fn(ev)
		}
		if ev.stopped {
			return
		}
	}
	ev.CurrentTarget = nil
	for _, entry := range d.snapshot(nil, ev.Type) {
		entry.fn(ev)
	}
}

// Emit dispatches "<feature>:<name>" on el and mirrors it as
// "accelade:<feature>:<name>" on the document.
func (d *Document) Emit(el *html.Node, feature, name string, detail any) {
	local := feature + ":" + name
	d.Dispatch(el, &Event{Type: local, Detail: detail})
	mirror := &Event{Type: "accelade:" + local, Detail: detail}
	mirror.Target = el
	for _, entry := range d.snapshot(nil, mirror.Type) {
		entry.fn(mirror)
	}
}

// Mark sets a per-element marker and reports whether it was newly set.
func (d *Document) Mark(node *html.Node, marker string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.markers[node]
	if set == nil {
		set = make(map[string]struct{})
		d.markers[node] = set
	}
	if _, ok := set[marker]; ok {
		return false
	}
	set[marker] = struct{}{}
	return true
}

// Unmark clears a per-element marker.
func (d *Document) Unmark(node *html.Node, marker string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.markers[node]; set != nil {
		delete(set, marker)
		if len(set) == 0 {
			delete(d.markers, node)
		}
	}
}

// Marked reports whether node carries marker.
func (d *Document) Marked(node *html.Node, marker string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.markers[node][marker]
	return ok
}
