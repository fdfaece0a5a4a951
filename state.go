package accelade

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/binding"
	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/globalstore"
)

// Root attribute contract.
const (
	AttrRoot      = binding.RootAttr
	AttrState     = "data-accelade-state"
	AttrSync      = "data-accelade-sync"
	AttrSealed    = "data-accelade-sealed"
	AttrFramework = "data-accelade-framework"
	AttrStore     = "data-accelade-store"
	AttrSession   = "data-accelade-session"
	AttrLocal     = "data-accelade-local"
)

// ScriptType marks inline component scripts:
//
//	<script type="text/accelade">return { save() { $set('saved', true) } }</script>
const ScriptType = "text/accelade"

// ParseState decodes a JSON state attribute. An empty value is an empty
// state; anything but a JSON object is ErrInvalidState.
func ParseState(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return map[string]any{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}

// ParseList splits a comma-separated attribute, dropping blanks.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolved is a root's initial state and where it came from.
type resolved struct {
	state   map[string]any
	global  *globalstore.Entry
	session string
	local   string
}

// resolveState merges a root's initial state, weakest first: the JSON
// defaults, sealed values, the named global store, session storage and
// local storage. Unreadable layers are logged and skipped.
func (rt *Runtime) resolveState(root *html.Node, log *zap.Logger) resolved {
	raw, _ := dom.Attr(root, AttrState)
	state, err := ParseState(raw)
	if err != nil {
		log.Warn("state attribute ignored", zap.Error(err))
	}

	if blob, ok := dom.Attr(root, AttrSealed); ok && strings.TrimSpace(blob) != "" {
		if rt.encoder == nil {
			log.Warn("sealed state ignored: no seal key configured")
		} else if sealed, err := rt.encoder.Open(strings.TrimSpace(blob)); err != nil {
			log.Warn("sealed state ignored", zap.Error(wrapEncodingError(err)))
		} else {
			overlay(state, sealed)
		}
	}

	var res resolved
	if name := strings.TrimSpace(dom.AttrOr(root, AttrStore, "")); name != "" {
		res.global = rt.globals.Get(name)
		res.global.Seed(state)
		overlay(state, res.global.All())
	}
	if key := strings.TrimSpace(dom.AttrOr(root, AttrSession, "")); key != "" {
		res.session = key
		rt.loadStored(state, "session", key, rt.session, log)
	}
	if key := strings.TrimSpace(dom.AttrOr(root, AttrLocal, "")); key != "" {
		res.local = key
		rt.loadStored(state, "local", key, rt.local, log)
	}
	res.state = state
	return res
}

type loader interface {
	Load(key string) (map[string]any, bool, error)
}

func (rt *Runtime) loadStored(state map[string]any, scope, key string, from loader, log *zap.Logger) {
	stored, ok, err := from.Load(key)
	if err != nil {
		log.Warn("stored state ignored",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	if ok {
		overlay(state, stored)
	}
}

func overlay(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
