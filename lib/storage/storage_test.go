package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Storage {
	return map[string]func(t *testing.T) Storage{
		"memory": func(t *testing.T) Storage { return NewMemory() },
		"sqlite": func(t *testing.T) Storage {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "local.db"))
			require.NoError(t, err)
			return s
		},
		"sqlite in memory": func(t *testing.T) Storage {
			s, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStorageRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, ok, err := s.Load("counter")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Save("counter", map[string]any{"count": 3, "tags": []string{"a"}}))
			state, ok, err := s.Load("counter")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, map[string]any{"count": 3.0, "tags": []any{"a"}}, state)

			require.NoError(t, s.Save("counter", map[string]any{"count": 4}))
			require.NoError(t, s.Save("accelade:other", nil))
			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"counter", "other"}, keys)

			require.NoError(t, s.Remove("counter"))
			_, ok, err = s.Load("counter")
			require.NoError(t, err)
			assert.False(t, ok)

			other, ok, err := s.Load("other")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, other)
		})
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("prefs", map[string]any{"theme": "dark"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	state, ok, err := s.Load("prefs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", state["theme"])
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Save("k", nil), ErrClosed)
	_, _, err := m.Load("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "accelade:count", Key("count"))
	assert.Equal(t, "accelade:count", Key("accelade:count"))
}
