package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePaths(t *testing.T) {
	ev := New()
	state := map[string]any{
		"a":     map[string]any{"b": 5},
		"count": 3.0,
		"user":  map[string]any{"name": "Ada"},
	}

	assert.Equal(t, 5, ev.Evaluate("a.b", state))
	assert.Equal(t, 3.0, ev.Evaluate("count", state))
	assert.Equal(t, "Ada", ev.Evaluate("user.name", state))
	assert.Nil(t, ev.Evaluate("user.missing", state))
	assert.Nil(t, ev.Evaluate("nope.deeper", state))
}

func TestFastAndGeneralPathsAgree(t *testing.T) {
	state := map[string]any{
		"a":     map[string]any{"b": 5.0},
		"count": 3.0,
		"user":  map[string]any{"name": "Ada", "tags": []any{"x"}},
		"flag":  false,
		"text":  "hello",
	}
	paths := []string{"a.b", "count", "user.name", "user.missing", "flag", "text", "missing", "text.length", "user.tags.length"}

	for _, engine := range []string{EngineExpr, EngineCEL} {
		ev := New(WithEngine(engine))
		for _, p := range paths {
			t.Run(engine+"/"+p, func(t *testing.T) {
				require.True(t, IsPath(p))
				assert.Equal(t, ev.Evaluate(p, state), ev.EvaluateGeneral(p, state))
			})
		}
	}
}

func TestBool(t *testing.T) {
	ev := New()
	tests := []struct {
		name   string
		expr   string
		state  map[string]any
		expect bool
	}{
		{"negative count", "count > 0", map[string]any{"count": -1.0}, false},
		{"positive count", "count > 0", map[string]any{"count": 2.0}, true},
		{"undefined value", "x", map[string]any{"x": nil}, false},
		{"missing key", "x", map[string]any{}, false},
		{"negation", "!open", map[string]any{"open": false}, true},
		{"strict equality", "status === 'done'", map[string]any{"status": "done"}, true},
		{"strict inequality", "status !== 'done'", map[string]any{"status": "done"}, false},
		{"null literal", "item == null", map[string]any{"item": nil}, true},
		{"empty string", "name", map[string]any{"name": ""}, false},
		{"empty list is truthy", "items", map[string]any{"items": []any{}}, true},
		{"syntax error", "count >", map[string]any{"count": 1.0}, false},
		{"comparison with nil", "count > 0", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ev.Bool(tt.expr, tt.state))
		})
	}
}

func TestString(t *testing.T) {
	ev := New()
	state := map[string]any{"count": 3.0, "price": 1.5, "name": "Ada", "on": true}

	assert.Equal(t, "3", ev.String("count", state))
	assert.Equal(t, "1.5", ev.String("price", state))
	assert.Equal(t, "4", ev.String("count + 1", state))
	assert.Equal(t, "Hi Ada", ev.String("'Hi ' + name", state))
	assert.Equal(t, "true", ev.String("on", state))
	assert.Equal(t, "", ev.String("missing", state))
	assert.Equal(t, "", ev.String("((", state))
	assert.Equal(t, "yes", ev.String("on ? 'yes' : 'no'", state))
}

func TestRawSurfacesErrors(t *testing.T) {
	ev := New()

	_, err := ev.Raw("", nil)
	assert.ErrorIs(t, err, ErrEmptyExpression)

	_, err = ev.Raw("count >", map[string]any{"count": 1.0})
	require.Error(t, err)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, EngineExpr, evalErr.Engine)
	assert.Equal(t, "count >", evalErr.Expr)
}

func TestClasses(t *testing.T) {
	ev := New()
	state := map[string]any{
		"active":  true,
		"loading": false,
		"preset":  map[string]any{"big": true, "small": false},
	}

	assert.Equal(t, map[string]bool{"is-active": true, "is-loading": false},
		ev.Classes("{'is-active': active, 'is-loading': loading}", state))
	assert.Equal(t, map[string]bool{"big": true, "small": false}, ev.Classes("preset", state))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, ev.Classes("'a b'", state))
	assert.Empty(t, ev.Classes("{", state))
}

func TestStyles(t *testing.T) {
	ev := New()
	state := map[string]any{
		"color":  "red",
		"weight": "bold",
		"preset": map[string]any{"fontSize": "12px"},
	}

	assert.Equal(t, map[string]string{"color": "red", "font-weight": "bold"},
		ev.Styles("{color: color, 'font-weight': weight}", state))
	assert.Equal(t, map[string]string{"font-size": "12px"}, ev.Styles("preset", state))
	assert.Equal(t, map[string]string{"display": "none"}, ev.Styles("'display: none'", state))
}

func TestCELEngine(t *testing.T) {
	ev := New(WithEngine(EngineCEL))
	require.Equal(t, EngineCEL, ev.EngineName())
	state := map[string]any{"count": 2.0, "name": "Ada"}

	assert.True(t, ev.Bool("count > 1", state))
	assert.False(t, ev.Bool("count > 5", state))
	assert.Equal(t, "Ada!", ev.String("name + '!'", state))
	assert.Equal(t, map[string]bool{"on": true}, ev.Classes("{'on': count == 2.0}", state))
}

func TestUnknownEngineFallsBack(t *testing.T) {
	ev := New(WithEngine("lua"))
	assert.Equal(t, EngineExpr, ev.EngineName())
}

func TestProgramCacheShared(t *testing.T) {
	cache := NewProgramCache()
	ev := New(WithProgramCache(cache))
	ev.Bool("count > 1", map[string]any{"count": 2.0})

	_, ok := cache.Get(EngineExpr + "\x00count > 1\x00count")
	assert.True(t, ok)
}

func TestStateKeysShadowBuiltins(t *testing.T) {
	state := map[string]any{
		"count": 5.0,
		"max":   10.0,
		"min":   2.0,
		"first": "Ada",
		"last":  "Lovelace",
		"len":   3.0,
	}
	for _, engine := range []string{EngineExpr, EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			ev := New(WithEngine(engine))

			v, err := ev.Raw("count > 0", state)
			require.NoError(t, err)
			assert.Equal(t, true, v)

			assert.False(t, ev.Bool("count > 0", map[string]any{"count": -1.0}))
			assert.True(t, ev.Bool("max > min", state))
			assert.Equal(t, "6", ev.String("count + 1.0", state))
			assert.Equal(t, "Ada Lovelace", ev.String("first + ' ' + last", state))
		})
	}
}

func TestProgramsFollowTypeChanges(t *testing.T) {
	ev := New()
	assert.Equal(t, "6", ev.String("count + 1", map[string]any{"count": 5.0}))
	assert.Equal(t, "ab", ev.String("count + 'b'", map[string]any{"count": "a"}))
	assert.Equal(t, "ab", ev.String("count + 'b'", map[string]any{"count": "a"}))
	assert.Equal(t, "3", ev.String("count + 1", map[string]any{"count": 2.0}))
}

func TestLength(t *testing.T) {
	state := map[string]any{
		"items": []any{1.0, 2.0},
		"none":  []any{},
		"name":  "Ada",
		"user":  map[string]any{"tags": []any{"x", "y", "z"}},
	}
	for _, engine := range []string{EngineExpr, EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			ev := New(WithEngine(engine))

			assert.Equal(t, 2.0, ev.Evaluate("items.length", state))
			assert.True(t, ev.Bool("items.length > 0", state))
			assert.False(t, ev.Bool("none.length > 0", state))
			assert.Equal(t, "none", ev.String("none.length == 0 ? 'none' : 'some'", state))
			assert.Equal(t, "3", ev.String("user.tags.length", state))
			assert.Equal(t, "4", ev.String("name.length + 1.0", state))
		})
	}
}
