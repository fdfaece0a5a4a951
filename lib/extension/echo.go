package extension

import (
	"strings"

	"github.com/pthm/accelade/lib/bus"
)

// Echo writes broadcast events into state. Each rule maps a channel event
// to a state key:
//
//	data-accelade-echo="orders.created=>lastOrder; orders.shipped=>shipped"
//
// A delivered payload is written to its key and re-dispatched on the root
// as echo:<event>.
type Echo struct{}

func (Echo) Name() string { return "echo" }

// EchoRule is one channel.event => key mapping.
type EchoRule struct {
	Channel string
	Event   string
	Key     string
}

func (Echo) Attach(ctx *Context) (func(), error) {
	raw, _ := ctx.Attr(MarkerPrefix + "echo")
	rules, err := ParseEchoRules(raw)
	if err != nil {
		return nil, err
	}
	if ctx.Bus == nil {
		return nil, configError("echo", "no event bus")
	}

	offs := make([]func(), 0, len(rules))
	for _, r := range rules {
		offs = append(offs, ctx.Bus.On(bus.Channel(r.Channel, r.Event), func(payload any) {
			ctx.Store.Set(r.Key, payload)
			ctx.Emit("echo", r.Event, map[string]any{"channel": r.Channel, "payload": payload})
			ctx.refresh()
		}))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}, nil
}

// ParseEchoRules parses ';' or ',' separated channel.event=>key rules.
func ParseEchoRules(s string) ([]EchoRule, error) {
	var rules []EchoRule
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, key, ok := strings.Cut(part, "=>")
		if !ok {
			return nil, configError("echo", "rule %q has no =>", part)
		}
		src, key = strings.TrimSpace(src), strings.TrimSpace(key)
		dot := strings.LastIndex(src, ".")
		if dot <= 0 || dot == len(src)-1 || key == "" {
			return nil, configError("echo", "rule %q must be channel.event=>key", part)
		}
		rules = append(rules, EchoRule{Channel: src[:dot], Event: src[dot+1:], Key: key})
	}
	if len(rules) == 0 {
		return nil, configError("echo", "no rules")
	}
	return rules, nil
}
