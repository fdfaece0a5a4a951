package expression

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprtypes "github.com/expr-lang/expr/types"
	exprvm "github.com/expr-lang/expr/vm"
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Engine names.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
)

// Engine evaluates a normalized expression against an environment whose
// keys are already mapped through envKey.
type Engine interface {
	Name() string
	Eval(expression string, env map[string]any) (any, error)
}

// ProgramCache stores compiled programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns an unbounded, concurrency-safe ProgramCache.
func NewProgramCache() ProgramCache {
	return &mapCache{entries: make(map[string]any)}
}

type mapCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
}

// NewEngine constructs a named engine sharing cache.
func NewEngine(name string, cache ProgramCache) (Engine, error) {
	switch name {
	case "", EngineExpr:
		return &exprEngine{cache: cache}, nil
	case EngineCEL:
		return &celEngine{cache: cache}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// exprEngine runs expressions on github.com/expr-lang/expr.
type exprEngine struct {
	cache ProgramCache
}

func (e *exprEngine) Name() string { return EngineExpr }

func (e *exprEngine) Eval(expression string, env map[string]any) (any, error) {
	program, err := e.loadOrCompile(expression, env)
	if err != nil {
		return nil, err
	}
	return exprlang.Run(program, env)
}

// loadOrCompile compiles against the environment's key set. Declared keys
// resolve as variables ahead of expr's builtins (count, max, first, ...);
// they are typed as any so one program serves every value type.
func (e *exprEngine) loadOrCompile(expression string, env map[string]any) (*exprvm.Program, error) {
	keys := sortedKeys(env)
	key := EngineExpr + "\x00" + expression + "\x00" + strings.Join(keys, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	declared := make(exprtypes.Map, len(keys))
	for _, k := range keys {
		declared[k] = exprtypes.Any
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(declared),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

// celEngine runs expressions on github.com/google/cel-go. Programs are
// compiled per set of declared variables, so the cache key includes the
// environment's key set.
type celEngine struct {
	cache ProgramCache
}

func (e *celEngine) Name() string { return EngineCEL }

func (e *celEngine) Eval(expression string, env map[string]any) (any, error) {
	program, err := e.loadOrCompile(expression, env)
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(env)
	if err != nil {
		return nil, err
	}
	if out.Type() == types.MapType {
		native, err := out.ConvertToNative(reflect.TypeOf(map[string]any{}))
		if err != nil {
			return nil, err
		}
		return native, nil
	}
	if out.Type() == types.ListType {
		native, err := out.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return nil, err
		}
		return native, nil
	}
	if out.Type() == types.NullType {
		return nil, nil
	}
	return out.Value(), nil
}

func (e *celEngine) loadOrCompile(expression string, env map[string]any) (celgo.Program, error) {
	keys := sortedKeys(env)
	cacheKey := EngineCEL + "\x00" + expression + "\x00" + strings.Join(keys, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	opts := []celgo.EnvOption{celgo.CrossTypeNumericComparisons(true)}
	for _, k := range keys {
		opts = append(opts, celgo.Variable(k, celgo.DynType))
	}
	celEnv, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

func sortedKeys(env map[string]any) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
