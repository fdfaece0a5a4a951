package backend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pthm/accelade/lib/syncer"
)

func post(t *testing.T, e *echo.Echo, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(syncer.CSRFHeader, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMount(t *testing.T) {
	e := echo.New()
	if srv := Mount(e); srv == nil {
		t.Fatal("Mount returned nil server")
	}
}

func TestMountGroup(t *testing.T) {
	e := echo.New()
	g := e.Group("/app")
	srv := MountGroup(g, WithCSRFToken("tok"))

	rec := post(t, e, "/app"+syncer.DefaultUpdateURL, "tok", `{"component":"c1","property":"count","value":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if v, _ := srv.Value("c1", "count"); v != 3.0 {
		t.Errorf("count = %v, want 3", v)
	}
}

func TestCSRFProtection(t *testing.T) {
	e := echo.New()
	srv := Mount(e, WithCSRFToken("secret"))

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{"missing header", "", http.StatusForbidden},
		{"wrong token", "nope", http.StatusForbidden},
		{"matching token", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, e, syncer.DefaultUpdateURL, tt.token, `{"component":"c1","property":"name","value":"x"}`)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
	if srv.Writes() != 1 {
		t.Errorf("writes = %d, want 1", srv.Writes())
	}
}

func TestBatchUpdate(t *testing.T) {
	e := echo.New()
	var seen []string
	srv := Mount(e, OnUpdate(func(component, property string, _ any) {
		seen = append(seen, component+":"+property)
	}))

	rec := post(t, e, syncer.DefaultBatchUpdateURL, "t",
		`{"component":"c1","updates":[{"property":"b","value":2},{"property":"a","value":"x"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Component != "c1" || len(body.Updates) != 2 {
		t.Errorf("unexpected response %+v", body)
	}
	if got := strings.Join(seen, ","); got != "c1:a,c1:b" {
		t.Errorf("OnUpdate order = %s", got)
	}
	if v, _ := srv.Value("c1", "a"); v != "x" {
		t.Errorf("a = %v", v)
	}
}

func TestBadRequests(t *testing.T) {
	e := echo.New()
	Mount(e)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing property", syncer.DefaultUpdateURL, `{"component":"c1"}`},
		{"malformed json", syncer.DefaultUpdateURL, `{`},
		{"empty batch", syncer.DefaultBatchUpdateURL, `{"component":"c1","updates":[]}`},
		{"batch entry without property", syncer.DefaultBatchUpdateURL, `{"component":"c1","updates":[{"value":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(t, e, tt.path, "t", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestStateRoute(t *testing.T) {
	e := echo.New()
	Mount(e)
	post(t, e, syncer.DefaultUpdateURL, "t", `{"component":"c9","property":"open","value":true}`)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accelade/state/c9", nil))
	if !strings.Contains(rec.Body.String(), `"open":true`) {
		t.Errorf("state body = %s", rec.Body.String())
	}
}

func TestChannelAgainstServer(t *testing.T) {
	e := echo.New()
	srv := Mount(e, WithCSRFToken("tok"))
	ts := httptest.NewServer(e)
	defer ts.Close()

	ch := syncer.New(
		syncer.WithUpdateURL(ts.URL+syncer.DefaultUpdateURL),
		syncer.WithBatchUpdateURL(ts.URL+syncer.DefaultBatchUpdateURL),
		syncer.WithCSRFToken("tok"),
		syncer.WithDebounce(10*time.Millisecond),
	)
	defer ch.Close()

	ch.Sync("c1", "count", 1.0)
	res := <-ch.Sync("c1", "count", 2.0)
	if !res.Success {
		t.Fatalf("sync failed: %+v", res)
	}
	res = <-ch.BatchSync("c1", map[string]any{"a": "x", "b": true})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res)
	}

	want := map[string]any{"count": 2.0, "a": "x", "b": true}
	for k, v := range want {
		if got, _ := srv.Value("c1", k); got != v {
			t.Errorf("%s = %v, want %v", k, got, v)
		}
	}
	if srv.Writes() != 2 {
		t.Errorf("writes = %d, want 2", srv.Writes())
	}
}

func TestPage(t *testing.T) {
	e := echo.New()
	Page(e, "/", `<div data-accelade id="c1"></div>`)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `id="c1"`) {
		t.Errorf("page = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %s", ct)
	}
}
