// Package backend is a reference sync endpoint built on Echo.
//
// It implements the two routes a component's sync channel posts to and
// keeps the last value per component property:
//
//	e := echo.New()
//	srv := backend.Mount(e, backend.WithCSRFToken(token))
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	srv := backend.MountGroup(g)
package backend

import (
	"net/http"
	"sort"
	"sync"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/logging"
	"github.com/pthm/accelade/lib/syncer"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	updatePath string
	batchPath  string
	csrfToken  string
	logger     *zap.Logger
	onUpdate   func(component, property string, value any)
}

// WithUpdatePath sets the single-property route. Defaults to
// syncer.DefaultUpdateURL.
func WithUpdatePath(path string) Option {
	return func(o *options) {
		o.updatePath = path
	}
}

// WithBatchPath sets the batch route. Defaults to
// syncer.DefaultBatchUpdateURL.
func WithBatchPath(path string) Option {
	return func(o *options) {
		o.batchPath = path
	}
}

// WithCSRFToken requires every update to carry token in the CSRF header.
// Without a token any non-empty header value is accepted.
func WithCSRFToken(token string) Option {
	return func(o *options) {
		o.csrfToken = token
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// OnUpdate registers a callback run for every stored property.
func OnUpdate(fn func(component, property string, value any)) Option {
	return func(o *options) {
		o.onUpdate = fn
	}
}

// Server stores synced properties.
type Server struct {
	opts options

	mu     sync.RWMutex
	values map[string]map[string]any
	writes int
}

type updateRequest struct {
	Component string `json:"component"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
}

type batchRequest struct {
	Component string `json:"component"`
	Updates   []struct {
		Property string `json:"property"`
		Value    any    `json:"value"`
	} `json:"updates"`
}

type response struct {
	Success   bool           `json:"success"`
	Component string         `json:"component"`
	Updates   map[string]any `json:"updates"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// New creates an unmounted Server.
func New(opts ...Option) *Server {
	o := options{
		updatePath: syncer.DefaultUpdateURL,
		batchPath:  syncer.DefaultBatchUpdateURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Or(o.logger).Named("backend")
	return &Server{opts: o, values: make(map[string]map[string]any)}
}

// routes is satisfied by *echo.Echo and *echo.Group.
type routes interface {
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Mount creates a Server and registers its routes on e.
func Mount(e *echo.Echo, opts ...Option) *Server {
	s := New(opts...)
	s.register(e)
	return s
}

// MountGroup creates a Server and registers its routes on g, so they share
// the group's middleware.
func MountGroup(g *echo.Group, opts ...Option) *Server {
	s := New(opts...)
	s.register(g)
	return s
}

func (s *Server) register(r routes) {
	r.POST(s.opts.updatePath, s.handleUpdate, s.csrf)
	r.POST(s.opts.batchPath, s.handleBatch, s.csrf)
	r.GET("/accelade/state/:component", s.handleState)
}

// csrf rejects updates without a valid CSRF header.
func (s *Server) csrf(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get(syncer.CSRFHeader)
		if got == "" || (s.opts.csrfToken != "" && got != s.opts.csrfToken) {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "CSRF token mismatch"})
		}
		return next(c)
	}
}

func (s *Server) handleUpdate(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil || req.Component == "" || req.Property == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "component and property are required"})
	}
	updates := map[string]any{req.Property: req.Value}
	s.store(req.Component, updates)
	return c.JSON(http.StatusOK, response{Success: true, Component: req.Component, Updates: updates})
}

func (s *Server) handleBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil || req.Component == "" || len(req.Updates) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "component and updates are required"})
	}
	updates := make(map[string]any, len(req.Updates))
	for _, u := range req.Updates {
		if u.Property == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "update without property"})
		}
		updates[u.Property] = u.Value
	}
	s.store(req.Component, updates)
	return c.JSON(http.StatusOK, response{Success: true, Component: req.Component, Updates: updates})
}

func (s *Server) handleState(c echo.Context) error {
	id := c.Param("component")
	return c.JSON(http.StatusOK, response{Success: true, Component: id, Updates: s.State(id)})
}

func (s *Server) store(component string, updates map[string]any) {
	s.mu.Lock()
	props := s.values[component]
	if props == nil {
		props = make(map[string]any)
		s.values[component] = props
	}
	for k, v := range updates {
		props[k] = v
	}
	s.writes++
	s.mu.Unlock()

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.opts.logger.Debug("stored update",
		zap.String("component", component),
		zap.Strings("properties", keys),
	)
	if s.opts.onUpdate != nil {
		for _, k := range keys {
			s.opts.onUpdate(component, k, updates[k])
		}
	}
}

// Value returns the last stored value of a component property.
func (s *Server) Value(component, property string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[component][property]
	return v, ok
}

// State returns a copy of everything stored for component.
func (s *Server) State(component string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values[component]))
	for k, v := range s.values[component] {
		out[k] = v
	}
	return out
}

// Writes counts accepted update requests.
func (s *Server) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return backend.Render(c, page)
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// Page serves markup at path as a templ component.
func Page(e *echo.Echo, path, markup string) {
	page := templ.Raw(markup)
	e.GET(path, func(c echo.Context) error {
		return Render(c, page)
	})
}
