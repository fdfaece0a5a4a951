package extension

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pthm/accelade/lib/deferred"
	"github.com/pthm/accelade/lib/dom"
)

// Defer attributes read from the component root.
const (
	DeferURL           = "data-defer-url"
	DeferMethod        = "data-defer-method"
	DeferRequest       = "data-defer-request"
	DeferHeaders       = "data-defer-headers"
	DeferPoll          = "data-defer-poll"
	DeferManual        = "data-defer-manual"
	DeferWatch         = "data-defer-watch"
	DeferWatchDebounce = "data-defer-watch-debounce"
)

// Defer loads remote data into processing, response and error, emitting
// defer:success and defer:error. It defines reload().
type Defer struct{}

func (Defer) Name() string { return "defer" }

func (Defer) Attach(ctx *Context) (func(), error) {
	cfg, err := DeferConfig(ctx.Root)
	if err != nil {
		return nil, err
	}

	opts := append([]deferred.Option{
		deferred.WithLogger(ctx.Logger),
		deferred.WithEmitter(func(name string, detail any) {
			ctx.Emit("defer", name, detail)
			ctx.refresh()
		}),
	}, ctx.LoaderOptions...)

	loader, err := deferred.New(cfg, ctx.Store, opts...)
	if err != nil {
		return nil, err
	}
	ctx.define("reload", func([]any) (any, error) {
		loader.Reload()
		ctx.refresh()
		return nil, nil
	})
	return loader.Dispose, nil
}

// DeferConfig reads a loader configuration from root's defer attributes.
// Durations accept Go syntax ("5s") or bare milliseconds ("5000").
func DeferConfig(root *html.Node) (deferred.Config, error) {
	cfg := deferred.Config{
		URL:    strings.TrimSpace(dom.AttrOr(root, DeferURL, "")),
		Method: dom.AttrOr(root, DeferMethod, ""),
		Manual: dom.HasAttr(root, DeferManual) && dom.AttrOr(root, DeferManual, "") != "false",
		Watch:  strings.TrimSpace(dom.AttrOr(root, DeferWatch, "")),
	}
	if cfg.URL == "" {
		return cfg, configError("defer", "%s is required", DeferURL)
	}
	if body, ok := dom.Attr(root, DeferRequest); ok && body != "" {
		cfg.Body = parseBody(body)
	}
	if raw, ok := dom.Attr(root, DeferHeaders); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Headers); err != nil {
			return cfg, configError("defer", "%s: %v", DeferHeaders, err)
		}
	}

	var err error
	if cfg.Poll, err = parseDuration(dom.AttrOr(root, DeferPoll, "")); err != nil {
		return cfg, configError("defer", "%s: %v", DeferPoll, err)
	}
	if cfg.WatchDebounce, err = parseDuration(dom.AttrOr(root, DeferWatchDebounce, "")); err != nil {
		return cfg, configError("defer", "%s: %v", DeferWatchDebounce, err)
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// parseBody keeps valid JSON as decoded data and anything else as text.
func parseBody(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
