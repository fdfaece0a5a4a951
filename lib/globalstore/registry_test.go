package globalstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIsLazyAndStable(t *testing.T) {
	r := New()
	_, ok := r.Lookup("cart")
	assert.False(t, ok)

	a := r.Get("cart")
	b := r.Get("cart")
	assert.Same(t, a, b)
	assert.Equal(t, "cart", a.Name())
	assert.Equal(t, []string{"cart"}, r.Names())
}

func TestLastWriteWins(t *testing.T) {
	r := New()
	e := r.Get("cart")
	e.Set("items", 1.0)
	e.Set("items", 2.0)
	assert.Equal(t, 2.0, r.Get("cart").Get("items"))
}

func TestSeedKeepsExisting(t *testing.T) {
	e := New().Get("prefs")
	calls := 0
	e.Subscribe(func(string, any) { calls++ })

	e.Seed(map[string]any{"theme": "light", "lang": "en"})
	e.Seed(map[string]any{"theme": "dark"})

	assert.Equal(t, map[string]any{"theme": "light", "lang": "en"}, e.All())
	assert.Equal(t, []string{"lang", "theme"}, e.Keys())
	assert.Zero(t, calls)
}

func TestSubscribeAndReset(t *testing.T) {
	r := New()
	e := r.Get("cart")
	var got []any
	off := e.Subscribe(func(_ string, v any) { got = append(got, v) })

	e.Set("n", 1.0)
	off()
	off()
	e.Set("n", 2.0)
	assert.Equal(t, []any{1.0}, got)

	e.Subscribe(func(_ string, v any) { got = append(got, v) })
	r.Reset()
	e.Set("n", 3.0)
	assert.Equal(t, []any{1.0}, got)
	assert.Empty(t, r.Names())
	assert.Nil(t, r.Get("cart").Get("n"))
}
