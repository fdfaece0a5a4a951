package binding

import (
	"strings"

	"github.com/pthm/accelade/lib/store"
)

// Prefixes maps each kind to the attribute names that declare it. Bind and
// On entries are prefixes followed by the attribute or event name; the
// others are exact attribute names.
type Prefixes map[Kind][]string

var prefixes = map[string]Prefixes{
	store.Vanilla: {
		Text: {"a-text"}, HTML: {"a-html"}, Show: {"a-show"}, If: {"a-if"},
		Model: {"a-model"}, Class: {"a-class"}, Style: {"a-style"},
		Bind: {"a-bind:"}, On: {"a-on:"}, Cloak: {"a-cloak"},
	},
	store.Vue: {
		Text: {"v-text"}, HTML: {"v-html"}, Show: {"v-show"}, If: {"v-if"},
		Model: {"v-model"}, Class: {"v-bind:class", ":class"}, Style: {"v-bind:style", ":style"},
		Bind: {"v-bind:", ":"}, On: {"v-on:", "@"}, Cloak: {"v-cloak"},
	},
	store.React: {
		Text: {"data-state-text"}, HTML: {"data-state-html"}, Show: {"data-state-show"}, If: {"data-state-if"},
		Model: {"data-state-model"}, Class: {"data-state-class"}, Style: {"data-state-style"},
		Bind: {"data-state-bind-"}, On: {"data-state-on-"}, Cloak: {"data-state-cloak"},
	},
	store.Svelte: {
		Text: {"s-text"}, HTML: {"s-html"}, Show: {"s-show"}, If: {"s-if"},
		Model: {"s-model", "bind:value"}, Class: {"s-class"}, Style: {"s-style"},
		Bind: {"s-bind:"}, On: {"s-on:", "on:"}, Cloak: {"s-cloak"},
	},
	store.Angular: {
		Text: {"ng-text", "ng-bind"}, HTML: {"ng-html", "ng-bind-html"}, Show: {"ng-show"}, If: {"ng-if"},
		Model: {"ng-model"}, Class: {"ng-class"}, Style: {"ng-style"},
		Bind: {"ng-attr-"}, On: {"ng-on-"}, Cloak: {"ng-cloak"},
	},
}

// PrefixesFor returns the attribute prefixes for framework. Unknown tags
// get the vanilla set.
func PrefixesFor(framework string) Prefixes {
	if p, ok := prefixes[framework]; ok {
		return p
	}
	return prefixes[store.Vanilla]
}

// Match classifies an attribute name. For Bind and On it also returns the
// target name and its modifiers.
func (p Prefixes) Match(attr string) (Kind, string, []string, bool) {
	// Exact names first, so ":class" wins over the ":" bind prefix.
	for _, k := range Kinds {
		if k == Bind || k == On {
			continue
		}
		for _, name := range p[k] {
			if attr == name {
				return k, "", nil, true
			}
		}
	}
	for _, k := range []Kind{Bind, On} {
		for _, prefix := range p[k] {
			if !strings.HasPrefix(attr, prefix) || len(attr) == len(prefix) {
				continue
			}
			parts := strings.Split(attr[len(prefix):], ".")
			if parts[0] == "" {
				continue
			}
			return k, parts[0], parts[1:], true
		}
	}
	return "", "", nil, false
}
