package syncer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	requests []map[string]any
	headers  []http.Header
	paths    []string
}

func (r *recorder) handler(status int, release <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		r.mu.Lock()
		r.requests = append(r.requests, body)
		r.headers = append(r.headers, req.Header.Clone())
		r.paths = append(r.paths, req.URL.Path)
		r.mu.Unlock()

		if release != nil {
			select {
			case <-release:
			case <-req.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newChannel(t *testing.T, srv *httptest.Server, opts ...Option) *Channel {
	t.Helper()
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithUpdateURL(srv.URL + DefaultUpdateURL),
		WithBatchUpdateURL(srv.URL + DefaultBatchUpdateURL),
		WithDebounce(20 * time.Millisecond),
		WithCSRFToken("tok"),
	}
	c := New(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c
}

func wait(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync result")
		return Result{}
	}
}

func TestSyncCoalescesBurst(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, nil))
	defer srv.Close()
	c := newChannel(t, srv)

	first := c.Sync("cmp", "count", 1)
	second := c.Sync("cmp", "count", 2)
	last := c.Sync("cmp", "count", 3)

	assert.True(t, wait(t, first).Cancelled)
	assert.True(t, wait(t, second).Cancelled)
	res := wait(t, last)
	require.True(t, res.Success, "err: %v", res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, map[string]any{"success": true}, res.Data)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, map[string]any{"component": "cmp", "property": "count", "value": 3.0}, rec.requests[0])
	assert.Equal(t, "tok", rec.headers[0].Get(CSRFHeader))
	assert.Equal(t, "application/json", rec.headers[0].Get("Content-Type"))
	assert.Equal(t, DefaultUpdateURL, rec.paths[0])
	assert.Zero(t, c.Pending())
}

func TestSyncKeysAreIndependent(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, nil))
	defer srv.Close()
	c := newChannel(t, srv)

	a := c.Sync("cmp", "a", 1)
	b := c.Sync("cmp", "b", 2)
	other := c.Sync("other", "a", 3)

	assert.True(t, wait(t, a).Success)
	assert.True(t, wait(t, b).Success)
	assert.True(t, wait(t, other).Success)
	assert.Equal(t, 3, rec.count())
}

func TestBatchSyncIsImmediate(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, nil))
	defer srv.Close()
	c := newChannel(t, srv, WithDebounce(time.Hour))

	res := wait(t, c.BatchSync("cmp", map[string]any{"b": 2, "a": "x"}))
	require.True(t, res.Success, "err: %v", res.Err)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, DefaultBatchUpdateURL, rec.paths[0])
	assert.Equal(t, map[string]any{
		"component": "cmp",
		"updates": []any{
			map[string]any{"property": "a", "value": "x"},
			map[string]any{"property": "b", "value": 2.0},
		},
	}, rec.requests[0])
}

func TestNon2xxIsFailureNotCancel(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusUnprocessableEntity, nil))
	defer srv.Close()
	c := newChannel(t, srv)

	res := wait(t, c.Sync("cmp", "count", 1, Debounce(0)))
	assert.False(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	var httpErr *HTTPError
	require.ErrorAs(t, res.Err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Status)
}

func TestNetworkFailureIsResult(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(WithUpdateURL(url+DefaultUpdateURL), WithDebounce(0))
	defer c.Close()
	res := wait(t, c.Sync("cmp", "count", 1))
	assert.False(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.Error(t, res.Err)
}

func TestSupersedingAbortsInFlight(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	srv := httptest.NewServer(rec.handler(http.StatusOK, release))
	defer srv.Close()
	c := newChannel(t, srv)

	first := c.BatchSync("cmp", map[string]any{"a": 1})
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	second := c.BatchSync("cmp", map[string]any{"a": 2})
	res := wait(t, first)
	assert.True(t, res.Cancelled)
	assert.True(t, IsCancelled(res.Err))
	assert.False(t, res.Success)

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	assert.True(t, wait(t, second).Success)
}

func TestCancelComponent(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK, nil))
	defer srv.Close()
	c := newChannel(t, srv, WithDebounce(50*time.Millisecond))

	mine := c.Sync("cmp", "count", 1)
	other := c.Sync("cmp-2", "count", 1)
	c.CancelComponent("cmp")
	c.CancelComponent("cmp")

	assert.True(t, wait(t, mine).Cancelled)
	assert.True(t, wait(t, other).Success)
	assert.Equal(t, 1, rec.count())
}

func TestKeysDoNotCollideAcrossComponents(t *testing.T) {
	assert.NotEqual(t, Key("batch", "X"), BatchKey("X"))

	rec := &recorder{}
	release := make(chan struct{})
	srv := httptest.NewServer(rec.handler(http.StatusOK, release))
	defer srv.Close()
	c := newChannel(t, srv, WithDebounce(30*time.Millisecond))

	prop := c.Sync("batch", "X", 1)
	batch := c.BatchSync("X", map[string]any{"a": 1})
	assert.Equal(t, 2, c.Pending())

	c.CancelComponent("X")
	close(release)

	assert.True(t, wait(t, batch).Cancelled)
	res := wait(t, prop)
	assert.True(t, res.Success, "err: %v", res.Err)
}

func TestClosedChannelRejects(t *testing.T) {
	c := New()
	c.Close()
	c.Close()
	res := wait(t, c.Sync("cmp", "count", 1))
	assert.ErrorIs(t, res.Err, ErrClosed)
}
