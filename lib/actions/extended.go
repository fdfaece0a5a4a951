package actions

import (
	"fmt"
	"math"

	"github.com/pthm/accelade/lib/expression"
)

// Extended adds list, map and string helpers to the basic vocabulary.
// Composite values are copied before modification so subscribers holding
// the previous value never see it change.
type Extended struct {
	*Set
}

// NewExtended builds the extended vocabulary over state.
func NewExtended(state State, original map[string]any) *Extended {
	e := &Extended{Set: New(state, original)}
	e.register("push", func(args []any) (any, error) {
		key, err := keyArg("push", args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: push needs an item", ErrArgument)
		}
		e.Push(key, args[1])
		return nil, nil
	})
	e.register("remove", func(args []any) (any, error) {
		key, err := keyArg("remove", args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: remove needs an index", ErrArgument)
		}
		return nil, e.Remove(key, args[1])
	})
	e.register("clear", func(args []any) (any, error) {
		key, err := keyArg("clear", args)
		if err != nil {
			return nil, err
		}
		e.Clear(key)
		return nil, nil
	})
	e.register("resetToOriginal", func(args []any) (any, error) {
		key, err := keyArg("resetToOriginal", args)
		if err != nil {
			return nil, err
		}
		e.ResetToOriginal(key)
		return nil, nil
	})
	e.register("resetAll", func([]any) (any, error) {
		e.ResetAll()
		return nil, nil
	})
	e.register("multiply", func(args []any) (any, error) {
		key, err := keyArg("multiply", args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: multiply needs a factor", ErrArgument)
		}
		return nil, e.Multiply(key, args[1])
	})
	e.register("append", func(args []any) (any, error) {
		key, err := keyArg("append", args)
		if err != nil {
			return nil, err
		}
		var suffix any
		if len(args) > 1 {
			suffix = args[1]
		}
		e.Append(key, suffix)
		return nil, nil
	})
	return e
}

// Push appends item to the list at key. A missing or non-list value starts
// a new list.
func (e *Extended) Push(key string, item any) {
	cur, _ := e.state.Get(key).([]any)
	next := make([]any, len(cur), len(cur)+1)
	copy(next, cur)
	e.state.Set(key, append(next, item))
}

// Remove deletes the list element at index, or the map entry named by
// index. Out-of-range indexes are ignored.
func (e *Extended) Remove(key string, index any) error {
	switch cur := e.state.Get(key).(type) {
	case []any:
		f, ok := expression.ToFloat(index)
		if !ok || math.IsNaN(f) {
			return fmt.Errorf("%w: remove index %v", ErrArgument, index)
		}
		i := int(f)
		if i < 0 || i >= len(cur) {
			return nil
		}
		next := make([]any, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		e.state.Set(key, next)
	case map[string]any:
		name := expression.ToString(index)
		if _, ok := cur[name]; !ok {
			return nil
		}
		next := make(map[string]any, len(cur))
		for k, v := range cur {
			if k != name {
				next[k] = v
			}
		}
		e.state.Set(key, next)
	}
	return nil
}

// Clear empties the value at key, keeping its current type.
func (e *Extended) Clear(key string) {
	e.state.Set(key, ZeroFor(e.state.Get(key)))
}

// ResetToOriginal restores a deep copy of the original value of key.
func (e *Extended) ResetToOriginal(key string) {
	e.state.Set(key, Clone(e.original[key]))
}

// ResetAll restores every original key in one batch.
func (e *Extended) ResetAll() {
	e.state.SetMany(cloneMap(e.original))
}

// Multiply multiplies the numeric value at key by factor. A non-numeric
// current value counts as 0.
func (e *Extended) Multiply(key string, factor any) error {
	f, ok := expression.ToFloat(factor)
	if !ok {
		return fmt.Errorf("%w: multiply factor %v", ErrArgument, factor)
	}
	cur, ok := expression.ToFloat(e.state.Get(key))
	if !ok || math.IsNaN(cur) {
		cur = 0
	}
	e.state.Set(key, cur*f)
	return nil
}

// Append concatenates suffix onto the string form of the value at key.
func (e *Extended) Append(key string, suffix any) {
	e.state.Set(key, expression.ToString(e.state.Get(key))+expression.ToString(suffix))
}
