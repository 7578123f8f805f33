package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FileRoundTrip(t *testing.T) {
	// GIVEN: A store in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "owner", "local.json")
	s, err := Open(path)
	require.NoError(t, err)

	// WHEN: Two keys are written
	require.NoError(t, s.Set("a", map[string]int{"x": 1}))
	require.NoError(t, s.Set("b", "two"))

	// THEN: A fresh store on the same file reads both back
	reopened, err := Open(path)
	require.NoError(t, err)

	var a map[string]int
	ok, err := reopened.Get("a", &a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, a["x"])

	var b string
	ok, err = reopened.Get("b", &b)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", b)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestStore_MissingKeyAndDelete(t *testing.T) {
	s := NewMemory()

	var v string
	ok, err := s.Get("nope", &v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))

	ok, err = s.Get("k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	s, err := Open(path)
	require.NoError(t, err)

	var v string
	_, err = s.Get("k", &v)
	assert.Error(t, err)
}
