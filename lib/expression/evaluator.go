// Package expression evaluates the inline expressions used by binding
// attributes against a component's state.
//
// Pure property paths (count, user.name) are resolved directly. Everything
// else is compiled by an AST interpreter (expr-lang/expr by default, cel-go
// on request) with the state's keys as its only variables, so expressions
// never execute arbitrary code. Coercing entry points never return errors:
// a failing expression yields nil, false, "" or an empty map.
package expression

import (
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pthm/accelade/lib/logging"
)

var pathPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

var literals = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true, "nil": true,
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithEngine selects the general-path engine by name ("expr" or "cel").
// Unknown names fall back to expr and are logged.
func WithEngine(name string) Option {
	return func(e *Evaluator) {
		e.engineName = name
	}
}

// WithProgramCache shares a compiled-program cache between evaluators.
func WithProgramCache(cache ProgramCache) Option {
	return func(e *Evaluator) {
		e.cache = cache
	}
}

// WithLogger sets the logger used for evaluation failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// Evaluator evaluates expressions against state snapshots. It is safe for
// concurrent use.
type Evaluator struct {
	engineName string
	engine     Engine
	cache      ProgramCache
	logger     *zap.Logger
}

// New constructs an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = logging.Or(e.logger)
	if e.cache == nil {
		e.cache = NewProgramCache()
	}
	engine, err := NewEngine(e.engineName, e.cache)
	if err != nil {
		e.logger.Warn("falling back to expr engine", zap.String("engine", e.engineName), zap.Error(err))
		engine, _ = NewEngine(EngineExpr, e.cache)
	}
	e.engine = engine
	return e
}

// EngineName reports the general-path engine in use.
func (e *Evaluator) EngineName() string {
	return e.engine.Name()
}

// IsPath reports whether expression is a pure dot path eligible for the
// fast path.
func IsPath(expression string) bool {
	expression = strings.TrimSpace(expression)
	if !pathPattern.MatchString(expression) {
		return false
	}
	head, _, _ := strings.Cut(expression, ".")
	return !literals[head]
}

// ResolvePath walks a dot path through nested maps. Missing segments
// resolve to nil. A length segment on a list or string yields its length
// as a float64.
func ResolvePath(state map[string]any, path string) any {
	var cur any = state
	for _, seg := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[seg]
		case map[string]string:
			v, ok := m[seg]
			if !ok {
				return nil
			}
			cur = v
		default:
			if seg != "length" {
				return nil
			}
			cur = lengthOf(cur)
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

func lengthOf(v any) any {
	switch v := v.(type) {
	case string:
		return float64(utf8.RuneCountInString(v))
	case []any:
		return float64(len(v))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return float64(rv.Len())
	}
	return nil
}

// Raw evaluates expression and returns the engine error, if any. It is the
// only entry point that surfaces errors.
func (e *Evaluator) Raw(expression string, state map[string]any) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if IsPath(expression) {
		return ResolvePath(state, expression), nil
	}
	return e.general(expression, state)
}

// EvaluateGeneral always takes the general path, bypassing the dot-path
// fast path.
func (e *Evaluator) EvaluateGeneral(expression string, state map[string]any) any {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil
	}
	v, err := e.general(expression, state)
	if err != nil {
		e.logFailure(err)
		return nil
	}
	return v
}

func (e *Evaluator) general(expression string, state map[string]any) (any, error) {
	d := exprDialect
	if e.engine.Name() == EngineCEL {
		d = celDialect
	}
	source := normalize(expression, d)
	env := make(map[string]any, len(state))
	for k, v := range state {
		env[envKey(k)] = v
	}
	v, err := e.engine.Eval(source, env)
	if err != nil {
		return nil, wrapEvaluationError(e.engine.Name(), expression, err)
	}
	return v, nil
}

// Evaluate returns the expression's value, or nil on failure.
func (e *Evaluator) Evaluate(expression string, state map[string]any) any {
	v, err := e.Raw(expression, state)
	if err != nil {
		e.logFailure(err)
		return nil
	}
	return v
}

// Bool evaluates expression with JavaScript truthiness; failures are false.
func (e *Evaluator) Bool(expression string, state map[string]any) bool {
	return Truthy(e.Evaluate(expression, state))
}

// String evaluates expression for display; failures are "".
func (e *Evaluator) String(expression string, state map[string]any) string {
	return ToString(e.Evaluate(expression, state))
}

// Classes evaluates a class expression: an object literal of
// class -> condition, a property already holding such an object, a string or
// a list of strings.
func (e *Evaluator) Classes(expression string, state map[string]any) map[string]bool {
	return classList(e.Evaluate(expression, state))
}

// Styles evaluates a style expression: an object literal of
// property -> value, a property already holding such an object, or a CSS
// declaration string.
func (e *Evaluator) Styles(expression string, state map[string]any) map[string]string {
	return styleList(e.Evaluate(expression, state))
}

func (e *Evaluator) logFailure(err error) {
	if err == ErrEmptyExpression {
		return
	}
	e.logger.Debug("expression evaluation failed", zap.Error(err))
}
