package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		expect []Statement
	}{
		{"bare call", "toggle", []Statement{{Kind: Call, Name: "toggle"}}},
		{"call with args", "increment('count', 2)", []Statement{
			{Kind: Call, Name: "increment", Args: []string{"'count'", "2"}},
		}},
		{"nested args", "set('items', [1, 2], {a: 'x,y'})", []Statement{
			{Kind: Call, Name: "set", Args: []string{"'items'", "[1, 2]", "{a: 'x,y'}"}},
		}},
		{"assignment", "count = count + 1", []Statement{
			{Kind: Assign, Name: "count", Expr: "count + 1"},
		}},
		{"multiple", "increment('a'); open = !open; save()", []Statement{
			{Kind: Call, Name: "increment", Args: []string{"'a'"}},
			{Kind: Assign, Name: "open", Expr: "!open"},
			{Kind: Call, Name: "save"},
		}},
		{"semicolon in string", "set('msg', 'a;b')", []Statement{
			{Kind: Call, Name: "set", Args: []string{"'msg'", "'a;b'"}},
		}},
		{"dollar method", "$toggle('open')", []Statement{
			{Kind: Call, Name: "$toggle", Args: []string{"'open'"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatements(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestParseStatementsRejectsGarbage(t *testing.T) {
	for _, src := range []string{"count == 1", "a.b()", "foo(1) bar", "1 + 2", "x = "} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseStatements(src)
			assert.ErrorIs(t, err, ErrInvalidStatement)
		})
	}
}

type recordingScope struct {
	state map[string]any
	calls []string
	args  [][]any
}

func (s *recordingScope) State() map[string]any { return s.state }

func (s *recordingScope) Invoke(name string, args []any) error {
	s.calls = append(s.calls, name)
	s.args = append(s.args, args)
	return nil
}

func (s *recordingScope) Assign(key string, value any) {
	s.state[key] = value
}

func TestRun(t *testing.T) {
	ev := New()
	scope := &recordingScope{state: map[string]any{"count": 1.0, "open": false}}

	err := ev.Run("increment('count', count + 1); open = !open; pick($event)", scope, map[string]any{"$event": "detail"})
	require.NoError(t, err)

	assert.Equal(t, []string{"increment", "pick"}, scope.calls)
	assert.Equal(t, []any{"count", 2.0}, scope.args[0])
	assert.Equal(t, []any{"detail"}, scope.args[1])
	assert.Equal(t, true, scope.state["open"])
}

func TestRunStopsOnArgumentError(t *testing.T) {
	ev := New()
	scope := &recordingScope{state: map[string]any{}}

	err := ev.Run("first(); second(1 +)", scope, nil)
	require.Error(t, err)
	assert.Equal(t, []string{"first"}, scope.calls)
}
