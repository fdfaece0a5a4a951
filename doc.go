// Package accelade hydrates server-rendered markup into reactive
// components.
//
// A component root carries its initial state and declarative binding
// attributes. The runtime turns each root into a live component whose
// state drives the DOM, whose DOM events mutate the state, and whose
// chosen properties are pushed to a backend.
//
// # Markup
//
//	<div data-accelade id="counter"
//	     data-accelade-state='{"count":0}'
//	     data-accelade-sync="count">
//	  <span a-text="count"></span>
//	  <button a-on:click="increment('count')">+</button>
//	  <p a-if="count > 10">That's a lot.</p>
//	</div>
//
// Roots may also carry a sealed state blob (data-accelade-sealed), a
// global store name (data-accelade-store), persistence keys
// (data-accelade-session, data-accelade-local), a framework override
// (data-accelade-framework) and extension markers such as
// data-accelade-toggle or data-accelade-defer. Props.Attrs and Root build
// the same contract from templ templates.
//
// # Frameworks
//
// Five reactivity backends share one contract: vanilla (a-*), vue (v-*, :,
// @), react (data-state-*), svelte (s-*) and angular (ng-*). The framework
// picks the attribute prefixes, the store implementation and how bindings
// react to changes; the behavior seen from markup is the same.
//
// # Hydration
//
//	doc, _ := dom.Parse(r)
//	rt, _ := accelade.New(doc, accelade.WithCSRFToken(token))
//	defer rt.Close()
//	components, err := rt.Hydrate()
//
// Initial state is merged weakest first from the JSON attribute, sealed
// state, the named global store, session storage and local storage. A root
// that fails to hydrate is logged and skipped; its siblings still mount.
//
// # Methods and scripts
//
// Event handlers call methods with a small statement grammar:
//
//	a-on:click="increment('count'); open = !open"
//
// Names resolve to script methods, then extension methods, then the action
// vocabulary (increment, decrement, set, get, toggle, reset, push, remove,
// clear, resetToOriginal, resetAll, multiply, append). Inline scripts run
// once in a sandbox that only sees state, actions, $set, $get, $toggle,
// $navigate, $emit and $on:
//
//	<script type="text/accelade">
//	  return { save() { $set('saved', true) } }
//	</script>
//
// # Sync
//
// Changes to properties listed in data-accelade-sync are posted to the
// update endpoint after a debounce; a burst of changes sends only the last
// value. Superseded and disposed requests are cancelled rather than failed.
// lib/backend is a reference endpoint.
//
// # Concurrency
//
// Timers and network completions run on their own goroutines but only
// touch state inside the document turn, so event handlers, bindings and
// background completions never interleave.
package accelade
