package actions

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pthm/accelade/lib/store"
)

func newState(initial map[string]any) store.Store {
	s := store.NewVanilla(store.Config{})
	s.Init(initial)
	return s
}

func TestIncrementDecrement(t *testing.T) {
	tests := []struct {
		name    string
		initial any
		action  string
		args    []any
		expect  float64
	}{
		{"default amount", 0.0, "increment", nil, 1},
		{"explicit amount", 2.0, "increment", []any{5.0}, 7},
		{"string amount", 2.0, "increment", []any{"3"}, 5},
		{"numeric string", "41", "increment", nil, 42},
		{"string prefix", "12px", "increment", nil, 13},
		{"fractional truncates", 2.9, "increment", nil, 3},
		{"unparseable", "abc", "increment", nil, 1},
		{"missing", nil, "increment", nil, 1},
		{"decrement", 3.0, "decrement", nil, 2},
		{"decrement below zero", 0.0, "decrement", []any{2.0}, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(map[string]any{"n": tt.initial})
			set := New(st, nil)

			if _, err := set.Call(tt.action, append([]any{"n"}, tt.args...)); err != nil {
				t.Fatalf("Call(%s) error = %v", tt.action, err)
			}
			if got := st.Get("n"); got != tt.expect {
				t.Errorf("n = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestResetUsesOriginalType(t *testing.T) {
	original := map[string]any{
		"count": 5.0,
		"open":  true,
		"items": []any{"a"},
		"user":  map[string]any{"name": "x"},
		"name":  "bob",
	}
	st := newState(original)
	set := New(st, original)

	// Change every key to a different type first.
	for k := range original {
		st.Set(k, "changed")
	}

	want := map[string]any{
		"count": 0.0,
		"open":  false,
		"items": []any{},
		"user":  map[string]any{},
		"name":  "",
	}
	for k, v := range want {
		set.Reset(k)
		if got := st.Get(k); !reflect.DeepEqual(got, v) {
			t.Errorf("Reset(%s) = %#v, want %#v", k, got, v)
		}
	}
}

func TestToggle(t *testing.T) {
	st := newState(map[string]any{"open": false, "label": "x"})
	set := New(st, nil)

	set.Toggle("open")
	if st.Get("open") != true {
		t.Errorf("open = %v, want true", st.Get("open"))
	}
	set.Toggle("label")
	if st.Get("label") != false {
		t.Errorf("label = %v, want false", st.Get("label"))
	}
}

func TestSetAndGet(t *testing.T) {
	st := newState(nil)
	set := New(st, nil)

	if _, err := set.Call("set", []any{"name", "ada"}); err != nil {
		t.Fatal(err)
	}
	got, err := set.Call("get", []any{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ada" {
		t.Errorf("get = %v, want ada", got)
	}
}

func TestCallErrors(t *testing.T) {
	set := New(newState(nil), nil)

	if _, err := set.Call("explode", nil); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action error = %v, want ErrUnknownAction", err)
	}
	if _, err := set.Call("increment", nil); !errors.Is(err, ErrArgument) {
		t.Errorf("missing key error = %v, want ErrArgument", err)
	}
	if _, err := set.Call("toggle", []any{42.0}); !errors.Is(err, ErrArgument) {
		t.Errorf("non-string key error = %v, want ErrArgument", err)
	}
}

func TestExtendedListHelpers(t *testing.T) {
	original := map[string]any{"items": []any{"a", "b"}}
	st := newState(original)
	ext := NewExtended(st, original)

	before := st.Get("items").([]any)
	ext.Push("items", "c")
	if got := st.Get("items"); !reflect.DeepEqual(got, []any{"a", "b", "c"}) {
		t.Errorf("after push items = %v", got)
	}
	if len(before) != 2 {
		t.Errorf("push mutated the previous list: %v", before)
	}

	if err := ext.Remove("items", 0.0); err != nil {
		t.Fatal(err)
	}
	if got := st.Get("items"); !reflect.DeepEqual(got, []any{"b", "c"}) {
		t.Errorf("after remove items = %v", got)
	}
	if err := ext.Remove("items", 10.0); err != nil {
		t.Errorf("out of range remove error = %v", err)
	}

	ext.Clear("items")
	if got := st.Get("items"); !reflect.DeepEqual(got, []any{}) {
		t.Errorf("after clear items = %v", got)
	}

	ext.ResetToOriginal("items")
	if got := st.Get("items"); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("after resetToOriginal items = %v", got)
	}
}

func TestExtendedOriginalIsIsolated(t *testing.T) {
	original := map[string]any{"items": []any{"a"}}
	st := newState(original)
	ext := NewExtended(st, original)

	original["items"].([]any)[0] = "mutated"
	ext.ResetToOriginal("items")
	if got := st.Get("items"); !reflect.DeepEqual(got, []any{"a"}) {
		t.Errorf("resetToOriginal = %v, want [a]", got)
	}
}

func TestExtendedResetAllBatches(t *testing.T) {
	original := map[string]any{"a": 1.0, "b": "x"}
	hook := &countingHook{}
	st := store.NewVanilla(store.Config{SyncKeys: []string{"a", "b"}, Hook: hook})
	st.Init(original)
	ext := NewExtended(st, original)

	st.Set("a", 2.0)
	st.Set("b", "y")
	hook.props = 0

	ext.ResetAll()
	if st.Get("a") != 1.0 || st.Get("b") != "x" {
		t.Errorf("resetAll state = %v", st.GetAll())
	}
	if hook.batches != 1 || hook.props != 0 {
		t.Errorf("resetAll syncs: batches=%d props=%d, want 1 batch", hook.batches, hook.props)
	}
}

func TestExtendedNumbersAndStrings(t *testing.T) {
	st := newState(map[string]any{"n": 3.0, "s": "ab", "m": map[string]any{"x": 1.0, "y": 2.0}})
	ext := NewExtended(st, nil)

	if err := ext.Multiply("n", "2"); err != nil {
		t.Fatal(err)
	}
	if st.Get("n") != 6.0 {
		t.Errorf("n = %v, want 6", st.Get("n"))
	}
	if _, err := ext.Call("multiply", []any{"n", "x"}); !errors.Is(err, ErrArgument) {
		t.Errorf("multiply bad factor error = %v", err)
	}

	ext.Append("s", 1.0)
	if st.Get("s") != "ab1" {
		t.Errorf("s = %v, want ab1", st.Get("s"))
	}

	if err := ext.Remove("m", "x"); err != nil {
		t.Fatal(err)
	}
	if got := st.Get("m"); !reflect.DeepEqual(got, map[string]any{"y": 2.0}) {
		t.Errorf("m = %v", got)
	}
}

func TestExtendedIncludesBasic(t *testing.T) {
	ext := NewExtended(newState(nil), nil)
	for _, name := range []string{"increment", "toggle", "push", "resetAll", "append"} {
		if !ext.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
	}
	if New(newState(nil), nil).Has("push") {
		t.Error("basic set should not include push")
	}
}

type countingHook struct {
	props   int
	batches int
}

func (h *countingHook) SyncProperty(string, any) { h.props++ }
func (h *countingHook) SyncBatch(map[string]any) { h.batches++ }
