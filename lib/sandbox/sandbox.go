// Package sandbox runs inline component scripts in an isolated JavaScript
// interpreter.
//
// A script is the body of a function whose parameters are the only
// capabilities it gets:
//
//	state, actions, $set, $get, $toggle, $navigate, $emit, $on
//
// It runs once and may return an object whose function-valued properties
// become the component's custom methods:
//
//	<script type="text/accelade">
//	  return {
//	    addTwo() { $set('count', $get('count') + 2) },
//	    save() { $emit('saved', state.count) },
//	  }
//	</script>
//
// There is no DOM, network, timer or module access. Each execution is
// bounded by a timeout that interrupts the interpreter.
package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/logging"
	"github.com/pthm/accelade/lib/store"
)

// DefaultTimeout bounds a single script execution or method call.
const DefaultTimeout = time.Second

// Params is the fixed parameter list scripts are called with.
var Params = []string{"state", "actions", "$set", "$get", "$toggle", "$navigate", "$emit", "$on"}

var (
	// ErrInvalidScript is returned when a script fails to compile.
	ErrInvalidScript = errors.New("sandbox: invalid script")

	// ErrScriptTimeout is returned when execution exceeds the timeout.
	ErrScriptTimeout = errors.New("sandbox: script timed out")

	// ErrNoMethod is returned by Call for a name the script did not define.
	ErrNoMethod = errors.New("sandbox: no such method")
)

// ScriptError wraps an exception thrown by script code.
type ScriptError struct {
	Method string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("sandbox: script failed: %v", e.Err)
	}
	return fmt.Sprintf("sandbox: method %s failed: %v", e.Method, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// State is the store surface exposed to scripts.
type State interface {
	Get(key string) any
	GetAll() map[string]any
	Set(key string, value any, opts ...store.SetOption)
}

// Actions is the action vocabulary exposed as the actions parameter.
type Actions interface {
	Names() []string
	Call(name string, args []any) (any, error)
}

// Capabilities are the host functions backing the script parameters. Nil
// navigation or event functions become no-ops.
type Capabilities struct {
	State    State
	Actions  Actions
	Navigate func(url string)
	Emit     func(name string, payload any)
	On       func(name string, fn func(payload any)) (off func())
}

type options struct {
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Sandbox.
type Option func(*options)

// WithTimeout bounds each execution. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Sandbox compiles and runs scripts.
type Sandbox struct {
	opts options
}

// New constructs a Sandbox.
func New(opts ...Option) *Sandbox {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Or(o.logger).Named("sandbox")
	return &Sandbox{opts: o}
}

// Compile checks src without running it.
func Compile(src string) (*goja.Program, error) {
	prog, err := goja.Compile("accelade-script", wrap(src), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return prog, nil
}

func wrap(src string) string {
	return fmt.Sprintf("(function(state, actions, $set, $get, $toggle, $navigate, $emit, $on) {\n%s\n})", src)
}

// Run executes src once with caps and returns the methods it defined. The
// returned Methods must be used from the same turn that owns caps.State.
func (s *Sandbox) Run(src string, caps Capabilities) (*Methods, error) {
	prog, err := Compile(src)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	m := &Methods{vm: vm, timeout: s.opts.timeout, logger: s.opts.logger, fns: make(map[string]goja.Callable)}

	fnVal, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, ErrInvalidScript
	}

	args := m.params(caps)
	var result goja.Value
	err = m.guard(func() error {
		var callErr error
		result, callErr = fn(goja.Undefined(), args...)
		return callErr
	})
	if err != nil {
		m.Dispose()
		return nil, m.wrapErr("", err)
	}

	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		if obj := result.ToObject(vm); obj != nil {
			for _, key := range obj.Keys() {
				if callable, ok := goja.AssertFunction(obj.Get(key)); ok {
					m.fns[key] = callable
				}
			}
		}
	}
	return m, nil
}

// params builds the fixed parameter values in Params order.
func (m *Methods) params(caps Capabilities) []goja.Value {
	vm := m.vm
	st := caps.State

	stateObj := vm.NewDynamicObject(&stateObject{vm: vm, st: st})

	actionsObj := vm.NewObject()
	if caps.Actions != nil {
		for _, name := range caps.Actions.Names() {
			name := name
			_ = actionsObj.Set(name, func(call goja.FunctionCall) goja.Value {
				out, err := caps.Actions.Call(name, exportArgs(call.Arguments))
				if err != nil {
					panic(vm.NewGoError(err))
				}
				return vm.ToValue(out)
			})
		}
	}

	set := func(key string, value goja.Value) {
		st.Set(key, Export(value))
	}
	get := func(key string) any {
		return st.Get(key)
	}
	toggle := func(key string) {
		st.Set(key, !expression.Truthy(st.Get(key)))
	}
	navigate := func(url string) {
		if caps.Navigate == nil {
			m.logger.Debug("navigation requested without a navigator", zap.String("url", url))
			return
		}
		caps.Navigate(url)
	}
	emit := func(name string, payload goja.Value) {
		if caps.Emit != nil {
			caps.Emit(name, Export(payload))
		}
	}
	on := func(name string, handler goja.Value) func() {
		cb, ok := goja.AssertFunction(handler)
		if !ok || caps.On == nil {
			return func() {}
		}
		off := caps.On(name, func(payload any) {
			err := m.guard(func() error {
				_, err := cb(goja.Undefined(), vm.ToValue(payload))
				return err
			})
			if err != nil {
				m.logger.Warn("script event handler failed", zap.String("event", name), zap.Error(err))
			}
		})
		m.offs = append(m.offs, off)
		return off
	}

	return []goja.Value{
		stateObj,
		actionsObj,
		vm.ToValue(set),
		vm.ToValue(get),
		vm.ToValue(toggle),
		vm.ToValue(navigate),
		vm.ToValue(emit),
		vm.ToValue(on),
	}
}

// Methods are the custom methods a script returned.
type Methods struct {
	vm      *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
	fns     map[string]goja.Callable
	offs    []func()
	depth   int
}

// Names returns the method names in sorted order.
func (m *Methods) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.fns))
	for n := range m.fns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the script defined name.
func (m *Methods) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.fns[name]
	return ok
}

// Call invokes a method with Go arguments.
func (m *Methods) Call(name string, args []any) (any, error) {
	if !m.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrNoMethod, name)
	}
	fn := m.fns[name]
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = m.vm.ToValue(a)
	}
	var out goja.Value
	err := m.guard(func() error {
		var callErr error
		out, callErr = fn(goja.Undefined(), vals...)
		return callErr
	})
	if err != nil {
		return nil, m.wrapErr(name, err)
	}
	return Export(out), nil
}

// Dispose releases event subscriptions made through $on.
func (m *Methods) Dispose() {
	if m == nil {
		return
	}
	offs := m.offs
	m.offs = nil
	for _, off := range offs {
		off()
	}
}

// guard runs fn under the timeout. Nested calls (a method triggering an
// event handler in the same interpreter) share the outermost bound.
func (m *Methods) guard(fn func() error) error {
	if m.depth > 0 || m.timeout <= 0 {
		m.depth++
		defer func() { m.depth-- }()
		return fn()
	}
	m.depth++
	timer := time.AfterFunc(m.timeout, func() {
		m.vm.Interrupt(ErrScriptTimeout)
	})
	defer func() {
		timer.Stop()
		m.vm.ClearInterrupt()
		m.depth--
	}()
	return fn()
}

func (m *Methods) wrapErr(method string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w after %s", ErrScriptTimeout, m.timeout)
	}
	return &ScriptError{Method: method, Err: err}
}

// Export converts an interpreter value to the state value model: integers
// become float64 and nested objects and arrays are converted recursively.
func Export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return normalize(v.Export())
}

func exportArgs(vals []goja.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Export(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// stateObject exposes the store as a live object: reads and writes go
// straight through to it.
type stateObject struct {
	vm *goja.Runtime
	st State
}

func (s *stateObject) Get(key string) goja.Value {
	v := s.st.Get(key)
	if v == nil {
		return goja.Undefined()
	}
	return s.vm.ToValue(v)
}

func (s *stateObject) Set(key string, val goja.Value) bool {
	s.st.Set(key, Export(val))
	return true
}

func (s *stateObject) Has(key string) bool {
	_, ok := s.st.GetAll()[key]
	return ok
}

func (s *stateObject) Delete(key string) bool {
	s.st.Set(key, nil)
	return true
}

func (s *stateObject) Keys() []string {
	all := s.st.GetAll()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
