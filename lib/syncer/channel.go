// Package syncer pushes local state changes to a backend endpoint.
//
// A Channel keeps at most one pending request per key. Single-property
// updates are keyed "prop:component:property" and debounced on the trailing
// edge, so a burst of writes sends only the last value. Batch updates are
// keyed "batch:component" and sent immediately. Issuing a request for a key
// cancels whatever was pending for it, whether still waiting on its timer or
// already in flight.
//
// Every call returns a buffered channel that receives exactly one Result.
// Failures are values, never panics; cancellation is reported separately
// from failure.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/logging"
)

// Defaults applied by New.
const (
	DefaultUpdateURL      = "/accelade/update"
	DefaultBatchUpdateURL = "/accelade/batch-update"
	DefaultDebounce       = 300 * time.Millisecond
)

// CSRFHeader carries the page's CSRF token on every request.
const CSRFHeader = "X-CSRF-TOKEN"

var (
	// ErrCancelled marks a request superseded by a newer one for the same
	// key, or cancelled by component disposal.
	ErrCancelled = errors.New("syncer: request cancelled")

	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("syncer: channel closed")
)

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("syncer: backend returned %d", e.Status)
	}
	return fmt.Sprintf("syncer: backend returned %d: %s", e.Status, e.Body)
}

// Result is the outcome of one sync request.
type Result struct {
	Success bool
	// Status is the HTTP status, zero when no response was received.
	Status int
	// Data is the decoded JSON response body.
	Data any
	Err  error
	// Cancelled is set when the request was superseded or its component
	// disposed. Cancelled results are not failures.
	Cancelled bool
}

// IsCancelled reports whether err marks a cancelled request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

type options struct {
	client         *http.Client
	updateURL      string
	batchUpdateURL string
	csrfToken      string
	debounce       time.Duration
	logger         *zap.Logger
	tracer         trace.Tracer
}

// Option configures a Channel.
type Option func(*options)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithUpdateURL sets the single-property endpoint.
func WithUpdateURL(url string) Option {
	return func(o *options) {
		o.updateURL = url
	}
}

// WithBatchUpdateURL sets the batch endpoint.
func WithBatchUpdateURL(url string) Option {
	return func(o *options) {
		o.batchUpdateURL = url
	}
}

// WithCSRFToken sets the token sent in CSRFHeader.
func WithCSRFToken(token string) Option {
	return func(o *options) {
		o.csrfToken = token
	}
}

// WithDebounce sets the default debounce for single-property updates.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithLogger sets the logger for failures and cancellations.
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

// CallOption configures one Sync call.
type CallOption func(*callOptions)

type callOptions struct {
	debounce    time.Duration
	hasDebounce bool
}

// Debounce overrides the channel's debounce for this call. Zero sends on
// the next timer tick.
func Debounce(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.debounce = d
		o.hasDebounce = true
	}
}

// Channel is the debounced, cancellable sync channel.
type Channel struct {
	opts options

	mu         sync.Mutex
	pending    map[string]*request
	generation map[string]uint64
	closed     bool
}

type request struct {
	key       string
	component string
	gen       uint64
	url       string
	body      []byte
	attrs     []attribute.KeyValue

	timer  *time.Timer
	cancel context.CancelFunc
	done   chan Result
	// settled is guarded by Channel.mu.
	settled bool
}

// New constructs a Channel.
func New(opts ...Option) *Channel {
	o := options{
		client:         http.DefaultClient,
		updateURL:      DefaultUpdateURL,
		batchUpdateURL: DefaultBatchUpdateURL,
		debounce:       DefaultDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Or(o.logger).Named("sync")
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/pthm/accelade/lib/syncer")
	}
	return &Channel{
		opts:       o,
		pending:    make(map[string]*request),
		generation: make(map[string]uint64),
	}
}

// Key returns the pending-request key for a single-property update.
func Key(componentID, property string) string {
	return "prop:" + componentID + ":" + property
}

// BatchKey returns the pending-request key for a batch update.
func BatchKey(componentID string) string {
	return "batch:" + componentID
}

type propertyBody struct {
	Component string `json:"component"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
}

type batchEntry struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

type batchBody struct {
	Component string       `json:"component"`
	Updates   []batchEntry `json:"updates"`
}

// Sync schedules a single-property update after the debounce interval. A
// later call for the same component and property before the request
// completes cancels this one.
func (c *Channel) Sync(componentID, property string, value any, opts ...CallOption) <-chan Result {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	delay := c.opts.debounce
	if co.hasDebounce {
		delay = co.debounce
	}

	body, err := json.Marshal(propertyBody{Component: componentID, Property: property, Value: value})
	if err != nil {
		return settledResult(Result{Err: fmt.Errorf("syncer: encode %s: %w", property, err)})
	}
	req := &request{
		key:       Key(componentID, property),
		component: componentID,
		url:       c.opts.updateURL,
		body:      body,
		attrs: []attribute.KeyValue{
			attribute.String("accelade.component", componentID),
			attribute.String("accelade.property", property),
		},
		done: make(chan Result, 1),
	}
	if !c.install(req) {
		return settledResult(Result{Err: ErrClosed})
	}

	c.mu.Lock()
	if c.pending[req.key] == req {
		req.timer = time.AfterFunc(delay, func() { c.send(req) })
	}
	c.mu.Unlock()
	return req.done
}

// BatchSync sends updates for a component in one request, immediately.
// A pending batch for the same component is cancelled.
func (c *Channel) BatchSync(componentID string, updates map[string]any) <-chan Result {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]batchEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, batchEntry{Property: k, Value: updates[k]})
	}

	body, err := json.Marshal(batchBody{Component: componentID, Updates: entries})
	if err != nil {
		return settledResult(Result{Err: fmt.Errorf("syncer: encode batch: %w", err)})
	}
	req := &request{
		key:       BatchKey(componentID),
		component: componentID,
		url:       c.opts.batchUpdateURL,
		body:      body,
		attrs: []attribute.KeyValue{
			attribute.String("accelade.component", componentID),
			attribute.StringSlice("accelade.properties", keys),
		},
		done: make(chan Result, 1),
	}
	if !c.install(req) {
		return settledResult(Result{Err: ErrClosed})
	}
	go c.send(req)
	return req.done
}

// install registers req as the pending request for its key, cancelling the
// previous one.
func (c *Channel) install(req *request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if prev := c.pending[req.key]; prev != nil {
		c.cancelLocked(prev)
	}
	c.generation[req.key]++
	req.gen = c.generation[req.key]
	c.pending[req.key] = req
	return true
}

// cancelLocked stops prev's timer, aborts it if in flight and settles it as
// cancelled. Cancelling a settled request is a no-op.
func (c *Channel) cancelLocked(req *request) {
	if c.pending[req.key] == req {
		delete(c.pending, req.key)
	}
	if req.settled {
		return
	}
	if req.timer != nil {
		req.timer.Stop()
	}
	if req.cancel != nil {
		req.cancel()
	}
	c.settleLocked(req, Result{Err: ErrCancelled, Cancelled: true})
	c.opts.logger.Debug("sync cancelled", zap.String("key", req.key))
}

func (c *Channel) settleLocked(req *request, res Result) {
	if req.settled {
		return
	}
	req.settled = true
	req.done <- res
}

func (c *Channel) send(req *request) {
	c.mu.Lock()
	if req.settled || c.pending[req.key] != req {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	req.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	res := c.do(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[req.key] == req {
		delete(c.pending, req.key)
	}
	// A response for anything but the newest request of its key is stale.
	if req.gen != c.generation[req.key] || ctx.Err() != nil {
		res = Result{Status: res.Status, Err: ErrCancelled, Cancelled: true}
	}
	if !res.Success && !res.Cancelled {
		c.opts.logger.Warn("sync failed",
			zap.String("key", req.key),
			zap.Int("status", res.Status),
			zap.Error(res.Err),
		)
	}
	c.settleLocked(req, res)
}

func (c *Channel) do(ctx context.Context, req *request) Result {
	ctx, span := c.opts.tracer.Start(ctx, "accelade.sync", trace.WithAttributes(req.attrs...))
	defer span.End()

	fail := func(res Result) Result {
		if !errors.Is(res.Err, context.Canceled) {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, strings.TrimSpace(res.Err.Error()))
		}
		return res
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(req.body))
	if err != nil {
		return fail(Result{Err: err})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.opts.csrfToken != "" {
		httpReq.Header.Set(CSRFHeader, c.opts.csrfToken)
	}

	resp, err := c.opts.client.Do(httpReq)
	if err != nil {
		return fail(Result{Err: err})
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(Result{Status: resp.StatusCode, Err: err})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(Result{
			Status: resp.StatusCode,
			Err:    &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))},
		})
	}

	var data any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fail(Result{Status: resp.StatusCode, Err: fmt.Errorf("syncer: decode response: %w", err)})
		}
	}
	return Result{Success: true, Status: resp.StatusCode, Data: data}
}

// Cancel cancels the pending request for key, if any.
func (c *Channel) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req := c.pending[key]; req != nil {
		c.cancelLocked(req)
	}
}

// CancelComponent cancels every pending or in-flight request belonging to
// componentID.
func (c *Channel) CancelComponent(componentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, req := range c.pending {
		if req.component == componentID {
			c.cancelLocked(req)
		}
	}
}

// Pending reports the number of requests waiting or in flight.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close cancels everything pending and rejects later calls.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, req := range c.pending {
		c.cancelLocked(req)
	}
}

func settledResult(res Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- res
	return ch
}
