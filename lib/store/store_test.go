package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	props   []map[string]any
	batches []map[string]any
}

func (h *recordingHook) SyncProperty(key string, value any) {
	h.props = append(h.props, map[string]any{key: value})
}

func (h *recordingHook) SyncBatch(updates map[string]any) {
	h.batches = append(h.batches, updates)
}

func newStore(t *testing.T, framework string, cfg Config) Store {
	t.Helper()
	s, err := New(framework, cfg)
	require.NoError(t, err)
	require.Equal(t, framework, s.Framework())
	return s
}

// forEachBackend runs fn once per framework tag.
func forEachBackend(t *testing.T, fn func(t *testing.T, framework string)) {
	for _, fw := range Frameworks {
		t.Run(fw, func(t *testing.T) { fn(t, fw) })
	}
}

func TestSetThenGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		s := newStore(t, fw, Config{})
		s.Init(map[string]any{"count": 0.0})

		values := []any{1.0, "text", true, []any{1.0, 2.0}, map[string]any{"a": 1.0}}
		for _, v := range values {
			s.Set("k", v)
			assert.Equal(t, v, s.Get("k"))
		}
		assert.Equal(t, 0.0, s.Get("count"))
	})
}

func TestSetEqualValueIsNoop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		hook := &recordingHook{}
		s := newStore(t, fw, Config{SyncKeys: []string{"count"}, Hook: hook})
		s.Init(map[string]any{"count": 1.0, "items": []any{"a"}})

		calls := 0
		s.Subscribe(func(any, any, string) { calls++ })
		s.SubscribeKey("count", func(any, any, string) { calls++ })

		s.Set("count", 1.0)
		s.Set("count", 1)
		s.Set("items", []any{"a"})
		s.SetMany(map[string]any{"count": 1.0})

		assert.Zero(t, calls)
		assert.Empty(t, hook.props)
		assert.Empty(t, hook.batches)
	})
}

func TestSubscribersSeeNewValue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		s := newStore(t, fw, Config{})
		s.Init(map[string]any{"count": 1.0})

		var order []string
		s.Subscribe(func(newValue, oldValue any, key string) {
			order = append(order, "wildcard")
			assert.Equal(t, "count", key)
			assert.Equal(t, 2.0, newValue)
			assert.Equal(t, 1.0, oldValue)
			assert.Equal(t, 2.0, s.Get("count"))
		})
		s.SubscribeKey("count", func(newValue, _ any, _ string) {
			order = append(order, "key")
			assert.Equal(t, 2.0, s.Get("count"))
		})
		s.SubscribeKey("other", func(any, any, string) {
			order = append(order, "other")
		})

		s.Set("count", 2.0)
		assert.Equal(t, []string{"key", "wildcard"}, order)
	})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		s := newStore(t, fw, Config{})
		s.Init(map[string]any{})

		var second func()
		secondCalls := 0
		s.Subscribe(func(any, any, string) {
			// Unsubscribing mid-notification must prevent the already
			// snapshotted delivery to the second subscriber.
			second()
		})
		second = s.Subscribe(func(any, any, string) { secondCalls++ })

		s.Set("a", 1.0)
		s.SetMany(map[string]any{"b": 1.0, "c": 2.0})
		assert.Zero(t, secondCalls)
	})
}

func TestSetManyBatchesSync(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		hook := &recordingHook{}
		s := newStore(t, fw, Config{SyncKeys: []string{"a", "b"}, Hook: hook})
		s.Init(map[string]any{"a": 1.0, "b": 1.0, "c": 1.0})

		notified := map[string]any{}
		s.Subscribe(func(newValue, _ any, key string) {
			notified[key] = newValue
			// Every update in the batch is visible before the first
			// notification runs.
			assert.Equal(t, 3.0, s.Get("c"))
		})

		s.SetMany(map[string]any{"a": 2.0, "b": 1.0, "c": 3.0})

		assert.Equal(t, map[string]any{"a": 2.0, "c": 3.0}, notified)
		assert.Empty(t, hook.props)
		require.Len(t, hook.batches, 1)
		assert.Equal(t, map[string]any{"a": 2.0}, hook.batches[0])
	})
}

func TestSyncOnlyForEnabledKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		hook := &recordingHook{}
		s := newStore(t, fw, Config{SyncKeys: []string{"count"}, Hook: hook})
		s.Init(map[string]any{"count": 0.0})

		s.Set("count", 1.0)
		s.Set("local", "x")
		s.Set("count", 2.0, NoSync())

		assert.Equal(t, []map[string]any{{"count": 1.0}}, hook.props)
		assert.Equal(t, 2.0, s.Get("count"))
	})
}

func TestDisposeIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, fw string) {
		hook := &recordingHook{}
		s := newStore(t, fw, Config{SyncKeys: []string{"count"}, Hook: hook})
		s.Init(map[string]any{"count": 0.0})
		calls := 0
		s.Subscribe(func(any, any, string) { calls++ })

		s.Dispose()
		s.Dispose()
		s.Set("count", 5.0)

		assert.True(t, s.Disposed())
		assert.Nil(t, s.Get("count"))
		assert.Empty(t, s.GetAll())
		assert.Zero(t, calls)
		assert.Empty(t, hook.props)
	})
}

func TestUnknownFramework(t *testing.T) {
	_, err := New("ember", Config{})
	assert.ErrorIs(t, err, ErrUnknownFramework)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name   string
		a, b   any
		expect bool
	}{
		{"int and float", 3, 3.0, true},
		{"different numbers", 3, 4.0, false},
		{"number and string", 3.0, "3", false},
		{"nil and nil", nil, nil, true},
		{"nil and zero", nil, 0.0, false},
		{"slices", []any{1.0}, []any{1.0}, true},
		{"maps", map[string]any{"a": "x"}, map[string]any{"a": "y"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Equal(tt.a, tt.b))
		})
	}
}
