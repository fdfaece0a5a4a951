package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/accelade/lib/actions"
	"github.com/pthm/accelade/lib/bus"
	"github.com/pthm/accelade/lib/store"
)

func capsFor(st store.Store) Capabilities {
	return Capabilities{State: st, Actions: actions.NewExtended(st, st.GetAll())}
}

func TestRunReturnsMethods(t *testing.T) {
	st := store.NewVanilla(store.Config{})
	st.Init(map[string]any{"count": 1.0})

	m, err := New().Run(`
		return {
			addTwo() { $set('count', $get('count') + 2) },
			double() { state.count = state.count * 2; return state.count },
			notAMethod: 42,
		}
	`, capsFor(st))
	require.NoError(t, err)
	assert.Equal(t, []string{"addTwo", "double"}, m.Names())

	_, err = m.Call("addTwo", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.Get("count"))

	out, err := m.Call("double", nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out)
	assert.Equal(t, 6.0, st.Get("count"))

	_, err = m.Call("missing", nil)
	assert.ErrorIs(t, err, ErrNoMethod)
}

func TestScriptUsesActionsAndToggle(t *testing.T) {
	st := store.NewVanilla(store.Config{})
	st.Init(map[string]any{"count": 0.0, "open": false, "items": []any{}})

	_, err := New().Run(`
		actions.increment('count', 5)
		actions.push('items', {id: 1})
		$toggle('open')
	`, capsFor(st))
	require.NoError(t, err)

	assert.Equal(t, 5.0, st.Get("count"))
	assert.Equal(t, true, st.Get("open"))
	assert.Equal(t, []any{map[string]any{"id": 1.0}}, st.Get("items"))
}

func TestMethodArguments(t *testing.T) {
	st := store.NewVanilla(store.Config{})
	m, err := New().Run(`return { rename(name, suffix) { $set('name', name + suffix) } }`, capsFor(st))
	require.NoError(t, err)

	_, err = m.Call("rename", []any{"ada", "!"})
	require.NoError(t, err)
	assert.Equal(t, "ada!", st.Get("name"))
}

func TestScriptWithoutReturn(t *testing.T) {
	st := store.NewVanilla(store.Config{})
	m, err := New().Run(`$set('ready', true)`, capsFor(st))
	require.NoError(t, err)
	assert.Empty(t, m.Names())
	assert.Equal(t, true, st.Get("ready"))
}

func TestInvalidScript(t *testing.T) {
	_, err := New().Run(`return {`, capsFor(store.NewVanilla(store.Config{})))
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestThrowingScript(t *testing.T) {
	_, err := New().Run(`throw new Error('nope')`, capsFor(store.NewVanilla(store.Config{})))
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, scriptErr.Error(), "nope")
}

func TestTimeout(t *testing.T) {
	sb := New(WithTimeout(20 * time.Millisecond))
	_, err := sb.Run(`while (true) {}`, capsFor(store.NewVanilla(store.Config{})))
	assert.ErrorIs(t, err, ErrScriptTimeout)

	m, err := sb.Run(`return { spin() { while (true) {} }, ok() { return 1 } }`, capsFor(store.NewVanilla(store.Config{})))
	require.NoError(t, err)
	_, err = m.Call("spin", nil)
	assert.ErrorIs(t, err, ErrScriptTimeout)

	// The interpreter stays usable after an interrupt.
	out, err := m.Call("ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out)
}

func TestNoHostAccess(t *testing.T) {
	st := store.NewVanilla(store.Config{})
	_, err := New().Run(`
		$set('require', typeof require)
		$set('fetch', typeof fetch)
		$set('timeout', typeof setTimeout)
	`, capsFor(st))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"require": "undefined", "fetch": "undefined", "timeout": "undefined"}, st.GetAll())
}

func TestEventCapabilities(t *testing.T) {
	b := bus.New()
	st := store.NewVanilla(store.Config{})
	var navigated string
	caps := capsFor(st)
	caps.Navigate = func(url string) { navigated = url }
	caps.Emit = func(name string, payload any) { b.Emit(name, payload) }
	caps.On = func(name string, fn func(any)) func() { return b.On(name, fn) }

	m, err := New().Run(`
		$on('ping', (p) => $set('last', p.n))
		return {
			ping() { $emit('ping', {n: 7}) },
			go() { $navigate('/next') },
		}
	`, caps)
	require.NoError(t, err)

	_, err = m.Call("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, st.Get("last"))

	b.Emit("ping", map[string]any{"n": 8.0})
	assert.Equal(t, 8.0, st.Get("last"))

	_, err = m.Call("go", nil)
	require.NoError(t, err)
	assert.Equal(t, "/next", navigated)

	m.Dispose()
	assert.Zero(t, b.Count("ping"))
	b.Emit("ping", map[string]any{"n": 9.0})
	assert.Equal(t, 8.0, st.Get("last"))
}
