// Package deferred loads one external resource per component.
//
// A Loader moves through idle, loading, then success or error, writing
// processing, response and error keys into its component's state. Loads are
// triggered on creation (unless manual), on a poll interval, by a debounced
// change to a watched state key, or by an explicit Reload. Only the newest
// request may land: starting a load aborts the one in flight.
package deferred

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/logging"
	"github.com/pthm/accelade/lib/store"
)

// State keys written by a Loader.
const (
	KeyProcessing = "processing"
	KeyResponse   = "response"
	KeyError      = "error"
)

// Event names passed to the Emitter.
const (
	EventSuccess = "success"
	EventError   = "error"
)

// DefaultWatchDebounce applies when Config.Watch is set without a debounce.
const DefaultWatchDebounce = 150 * time.Millisecond

var (
	// ErrAborted marks a load superseded by a newer one or stopped by
	// Dispose.
	ErrAborted = errors.New("deferred: load aborted")

	// ErrNoURL is returned by New when the config has no URL.
	ErrNoURL = errors.New("deferred: url is required")
)

// IsAborted reports whether err marks an aborted load.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// Config describes what to load and when.
type Config struct {
	URL    string
	Method string
	// Body is sent as is when it is a string or []byte, JSON-encoded
	// otherwise.
	Body    any
	Headers map[string]string
	// Poll reloads on this interval when positive.
	Poll time.Duration
	// Manual suppresses the initial load.
	Manual bool
	// Watch names a state key whose changes trigger a debounced reload.
	Watch         string
	WatchDebounce time.Duration
}

// Outcome is the result of one load.
type Outcome struct {
	Data        any
	ContentType string
	Status      int
	Err         error
	Aborted     bool
}

// State is the subset of store.Store a Loader writes to.
type State interface {
	Get(key string) any
	SetMany(updates map[string]any, opts ...store.SetOption)
	SubscribeKey(key string, fn store.Subscriber) func()
}

// Emitter receives success and error events.
type Emitter func(name string, detail any)

type options struct {
	client    *http.Client
	emit      Emitter
	schedule  func(func())
	logger    *zap.Logger
	tracer    trace.Tracer
	csrfToken string
}

// Option configures a Loader.
type Option func(*options)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithEmitter sets the event sink.
func WithEmitter(fn Emitter) Option {
	return func(o *options) {
		o.emit = fn
	}
}

// WithScheduler sets how work arriving from timers and network completions
// is run. The default runs it directly. Runtimes pass their turn lock here
// so state writes never race with event handlers.
func WithScheduler(fn func(func())) Option {
	return func(o *options) {
		o.schedule = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithCSRFToken sets the token sent with non-GET requests.
func WithCSRFToken(token string) Option {
	return func(o *options) {
		o.csrfToken = token
	}
}

// Loader is one component's deferred data source.
type Loader struct {
	cfg  Config
	st   State
	opts options

	mu          sync.Mutex
	current     *load
	seq         uint64
	debounce    *time.Timer
	stopPoll    chan struct{}
	unsubscribe func()
	disposed    bool
}

type load struct {
	id     uint64
	cancel context.CancelFunc
	done   chan Outcome
}

// New creates a Loader and starts it: the poll interval begins and, unless
// cfg.Manual is set, the first load is issued. Call New from the turn that
// owns st.
func New(cfg Config, st State, opts ...Option) (*Loader, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoURL
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Watch != "" && cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}

	o := options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	if o.schedule == nil {
		o.schedule = func(fn func()) { fn() }
	}
	if o.emit == nil {
		o.emit = func(string, any) {}
	}
	o.logger = logging.Or(o.logger).Named("defer")
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/pthm/accelade/lib/deferred")
	}

	l := &Loader{cfg: cfg, st: st, opts: o}
	if cfg.Watch != "" {
		l.unsubscribe = st.SubscribeKey(cfg.Watch, func(any, any, string) { l.watchTriggered() })
	}
	if cfg.Poll > 0 {
		l.startPoll(cfg.Poll)
	}
	if !cfg.Manual {
		l.Reload()
	}
	return l, nil
}

// Config returns the normalized configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

// Reload aborts any load in flight and starts a new one. The returned
// channel receives exactly one Outcome after the state has been updated.
// Call Reload from the turn that owns the state.
func (l *Loader) Reload() <-chan Outcome {
	done := make(chan Outcome, 1)

	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		done <- Outcome{Err: ErrAborted, Aborted: true}
		return done
	}
	if prev := l.current; prev != nil {
		prev.cancel()
	}
	l.seq++
	ctx, cancel := context.WithCancel(context.Background())
	ld := &load{id: l.seq, cancel: cancel, done: done}
	l.current = ld
	l.mu.Unlock()

	l.st.SetMany(map[string]any{KeyProcessing: true, KeyError: nil})
	go l.run(ctx, ld)
	return done
}

func (l *Loader) run(ctx context.Context, ld *load) {
	out := l.fetch(ctx)
	if ctx.Err() != nil {
		out = Outcome{Err: ErrAborted, Aborted: true}
	}
	ld.cancel()

	l.opts.schedule(func() {
		l.mu.Lock()
		latest := l.current == ld && !l.disposed
		if latest {
			l.current = nil
		}
		l.mu.Unlock()

		if !latest {
			// Superseded: the newer load owns processing.
			ld.done <- Outcome{Err: ErrAborted, Aborted: true}
			return
		}
		l.land(out)
		ld.done <- out
	})
}

// land writes out into state and emits its event.
func (l *Loader) land(out Outcome) {
	switch {
	case out.Aborted:
		l.st.SetMany(map[string]any{KeyProcessing: false})
		l.opts.logger.Debug("load aborted", zap.String("url", l.cfg.URL))
	case out.Err != nil:
		msg := out.Err.Error()
		l.st.SetMany(map[string]any{KeyProcessing: false, KeyError: msg})
		l.opts.logger.Warn("load failed", zap.String("url", l.cfg.URL), zap.Error(out.Err))
		l.opts.emit(EventError, map[string]any{"error": msg, "status": out.Status})
	default:
		l.st.SetMany(map[string]any{KeyProcessing: false, KeyResponse: out.Data, KeyError: nil})
		l.opts.emit(EventSuccess, map[string]any{"response": out.Data, "status": out.Status})
	}
}

func (l *Loader) fetch(ctx context.Context) Outcome {
	ctx, span := l.opts.tracer.Start(ctx, "accelade.defer", trace.WithAttributes(
		attribute.String("http.request.method", l.cfg.Method),
		attribute.String("url.full", l.cfg.URL),
	))
	defer span.End()

	out := l.do(ctx)
	if out.Err != nil && !errors.Is(out.Err, context.Canceled) {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, strings.TrimSpace(out.Err.Error()))
	}
	return out
}

func (l *Loader) do(ctx context.Context) Outcome {
	body, contentType, err := encodeBody(l.cfg.Body)
	if err != nil {
		return Outcome{Err: err}
	}
	var reader io.Reader
	if body != nil && l.cfg.Method != http.MethodGet && l.cfg.Method != http.MethodHead {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, l.cfg.Method, l.cfg.URL, reader)
	if err != nil {
		return Outcome{Err: err}
	}
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if reader != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if l.opts.csrfToken != "" && l.cfg.Method != http.MethodGet {
		req.Header.Set("X-CSRF-TOKEN", l.opts.csrfToken)
	}
	for k, v := range l.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := l.opts.client.Do(req)
	if err != nil {
		return Outcome{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	ct := resp.Header.Get("Content-Type")
	data, err := Classify(ct, raw)
	if err != nil {
		return Outcome{Status: resp.StatusCode, ContentType: ct, Err: err}
	}
	return Outcome{Data: data, ContentType: ct, Status: resp.StatusCode}
}

// Classify decodes a response body by content type: JSON types decode to
// Go values, text types become strings and anything else stays as bytes.
func Classify(contentType string, body []byte) (any, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("deferred: decode json: %w", err)
		}
		return v, nil
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/xml",
		mediaType == "application/javascript",
		strings.HasSuffix(mediaType, "+xml"):
		return string(body), nil
	case mediaType == "" && json.Valid(body):
		var v any
		_ = json.Unmarshal(body, &v)
		return v, nil
	}
	return body, nil
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if b == "" {
			return nil, "", nil
		}
		if json.Valid([]byte(b)) {
			return []byte(b), "application/json", nil
		}
		return []byte(b), "text/plain; charset=utf-8", nil
	case []byte:
		return b, "application/octet-stream", nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("deferred: encode body: %w", err)
	}
	return raw, "application/json", nil
}

func (l *Loader) watchTriggered() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return
	}
	if l.debounce != nil {
		l.debounce.Stop()
	}
	l.debounce = time.AfterFunc(l.cfg.WatchDebounce, l.scheduledReload)
}

func (l *Loader) scheduledReload() {
	l.opts.schedule(func() {
		if l.Disposed() {
			return
		}
		l.Reload()
	})
}

func (l *Loader) startPoll(every time.Duration) {
	stop := make(chan struct{})
	l.stopPoll = stop
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.scheduledReload()
			}
		}
	}()
}

// Processing reports whether a load is in flight.
func (l *Loader) Processing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

// Disposed reports whether Dispose has run.
func (l *Loader) Disposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// Dispose aborts the load in flight and stops the poll interval, the watch
// subscription and any pending debounce. Later calls are no-ops.
func (l *Loader) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	if l.current != nil {
		l.current.cancel()
		l.current = nil
	}
	if l.debounce != nil {
		l.debounce.Stop()
	}
	if l.stopPoll != nil {
		close(l.stopPoll)
	}
	unsubscribe := l.unsubscribe
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
