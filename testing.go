package accelade

import (
	"bytes"
	"context"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/dom"
)

// TestResult holds a hydrated page for testing.
//
// Provides convenience methods for driving the page and asserting on the
// rendered HTML and component state.
type TestResult struct {
	Runtime   *Runtime
	Document  *dom.Document
	Instances []*Instance
}

// TestMount parses markup, hydrates every component root and returns the
// live page. Hydration errors from individual roots are returned alongside
// the components that did mount.
//
//	page, err := accelade.TestMount(`<div data-accelade id="c"
//	    data-accelade-state='{"count":0}'>
//	  <span id="out" a-text="count"></span>
//	  <button id="inc" a-on:click="increment('count')">+</button>
//	</div>`)
//	defer page.Close()
//	page.Click("inc")
//	if page.Text("out") != "1" {
//	    t.Fatal("counter did not update")
//	}
func TestMount(markup string, opts ...Option) (*TestResult, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}
	rt, err := New(doc, opts...)
	if err != nil {
		return nil, err
	}
	instances, err := rt.Hydrate()
	return &TestResult{Runtime: rt, Document: doc, Instances: instances}, err
}

// TestRender renders a templ component and hydrates the result.
func TestRender(component templ.Component, opts ...Option) (*TestResult, error) {
	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		return nil, err
	}
	return TestMount(buf.String(), opts...)
}

// HTML renders the current document.
func (r *TestResult) HTML() string {
	return r.Document.String()
}

// HTMLContains checks if the rendered document contains substr.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML(), substr)
}

// Instance returns the live component with id, or nil.
func (r *TestResult) Instance(id string) *Instance {
	inst, _ := r.Runtime.Get(id)
	return inst
}

// Element returns the element with id, or nil when it is detached.
func (r *TestResult) Element(id string) *html.Node {
	var el *html.Node
	r.Document.Do(func() {
		el = dom.ByID(r.Document.Root(), id)
	})
	return el
}

// Text returns the text content of the element with id.
func (r *TestResult) Text(id string) string {
	var text string
	r.Document.Do(func() {
		if el := dom.ByID(r.Document.Root(), id); el != nil {
			text = dom.TextContent(el)
		}
	})
	return text
}

// Click dispatches a click on the element with id.
func (r *TestResult) Click(id string) {
	if el := r.Element(id); el != nil {
		r.Document.Click(el)
	}
}

// Type sets the value of the field with id and dispatches input.
func (r *TestResult) Type(id, value string) {
	if el := r.Element(id); el != nil {
		r.Document.Type(el, value)
	}
}

// Close disposes every component.
func (r *TestResult) Close() error {
	return r.Runtime.Close()
}
