// Package actions provides the fixed vocabulary of state mutators exposed to
// templates and scripts.
//
// A Set closes over a component's store and the original (pre-mutation)
// state snapshot. Templates reach it through the action-dispatch grammar:
//
//	<button a-on:click="increment('count')">+</button>
//	<button a-on:click="reset('count')">reset</button>
//
// Numbers written by actions are always float64, matching what JSON decoding
// produces for the initial state.
package actions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/store"
)

var (
	// ErrUnknownAction is returned by Call for a name outside the vocabulary.
	ErrUnknownAction = errors.New("actions: unknown action")

	// ErrArgument is returned when an action receives missing or malformed
	// arguments.
	ErrArgument = errors.New("actions: invalid argument")
)

// State is the subset of store.Store the actions need.
type State interface {
	Get(key string) any
	Set(key string, value any, opts ...store.SetOption)
	SetMany(updates map[string]any, opts ...store.SetOption)
}

// Func is an action invoked with already-evaluated arguments.
type Func func(args []any) (any, error)

// Set is the basic action vocabulary: increment, decrement, set, get,
// toggle and reset.
type Set struct {
	state    State
	original map[string]any
	funcs    map[string]Func
}

// New builds the basic vocabulary over state. original is deep-cloned, so
// later mutation of the caller's map does not leak in.
func New(state State, original map[string]any) *Set {
	s := &Set{state: state, original: cloneMap(original)}
	s.funcs = map[string]Func{
		"increment": func(args []any) (any, error) {
			key, err := keyArg("increment", args)
			if err != nil {
				return nil, err
			}
			return nil, s.Increment(key, amountArg(args))
		},
		"decrement": func(args []any) (any, error) {
			key, err := keyArg("decrement", args)
			if err != nil {
				return nil, err
			}
			return nil, s.Decrement(key, amountArg(args))
		},
		"set": func(args []any) (any, error) {
			key, err := keyArg("set", args)
			if err != nil {
				return nil, err
			}
			var v any
			if len(args) > 1 {
				v = args[1]
			}
			s.Set(key, v)
			return nil, nil
		},
		"get": func(args []any) (any, error) {
			key, err := keyArg("get", args)
			if err != nil {
				return nil, err
			}
			return s.Get(key), nil
		},
		"toggle": func(args []any) (any, error) {
			key, err := keyArg("toggle", args)
			if err != nil {
				return nil, err
			}
			s.Toggle(key)
			return nil, nil
		},
		"reset": func(args []any) (any, error) {
			key, err := keyArg("reset", args)
			if err != nil {
				return nil, err
			}
			s.Reset(key)
			return nil, nil
		},
	}
	return s
}

// Increment parses the current value as an integer (0 when it does not
// parse) and adds amount.
func (s *Set) Increment(key string, amount float64) error {
	s.state.Set(key, ParseInt(s.state.Get(key))+amount)
	return nil
}

// Decrement is Increment with the amount subtracted.
func (s *Set) Decrement(key string, amount float64) error {
	s.state.Set(key, ParseInt(s.state.Get(key))-amount)
	return nil
}

// Set writes value.
func (s *Set) Set(key string, value any) {
	s.state.Set(key, value)
}

// Get reads the current value.
func (s *Set) Get(key string) any {
	return s.state.Get(key)
}

// Toggle negates the truthiness of the current value.
func (s *Set) Toggle(key string) {
	s.state.Set(key, !expression.Truthy(s.state.Get(key)))
}

// Reset writes the zero value for the type the key had originally, not the
// type it holds now.
func (s *Set) Reset(key string) {
	s.state.Set(key, ZeroFor(s.original[key]))
}

// Original returns a deep copy of the original value of key.
func (s *Set) Original(key string) any {
	return Clone(s.original[key])
}

// Has reports whether name is part of the vocabulary.
func (s *Set) Has(name string) bool {
	_, ok := s.funcs[name]
	return ok
}

// Names returns the action names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.funcs))
	for n := range s.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named action with evaluated arguments.
func (s *Set) Call(name string, args []any) (any, error) {
	fn, ok := s.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return fn(args)
}

func (s *Set) register(name string, fn Func) {
	s.funcs[name] = fn
}

func keyArg(action string, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: %s needs a state key", ErrArgument, action)
	}
	key, ok := args[0].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s key must be a non-empty string, got %T", ErrArgument, action, args[0])
	}
	return key, nil
}

func amountArg(args []any) float64 {
	if len(args) < 2 || args[1] == nil {
		return 1
	}
	if f, ok := expression.ToFloat(args[1]); ok && !math.IsNaN(f) {
		return f
	}
	return 1
}

// ParseInt converts v the way parseInt(String(v)) does, returning 0 where
// that would produce NaN: numbers truncate toward zero and strings use their
// leading integer prefix.
func ParseInt(v any) float64 {
	switch t := v.(type) {
	case string:
		return parseIntPrefix(t)
	case bool, nil:
		return 0
	}
	f, ok := expression.ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Trunc(f)
}

func parseIntPrefix(s string) float64 {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	var n float64
	digits := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + float64(c-'0')
		digits++
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// ZeroFor returns the type-appropriate empty value for v: 0 for numbers,
// false for booleans, an empty list or map for composites and "" otherwise.
func ZeroFor(v any) any {
	switch v.(type) {
	case bool:
		return false
	case []any:
		return []any{}
	case map[string]any:
		return map[string]any{}
	}
	if _, ok := expression.ToFloat(v); ok {
		if _, isString := v.(string); !isString {
			return 0.0
		}
	}
	return ""
}

// Clone deep-copies JSON-shaped values. Other values are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
