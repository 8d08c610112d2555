package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	fl := New(path)

	require.NoError(t, fl.Lock())
	require.NoError(t, fl.Unlock())
}

func TestFileLock_TryLockConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	holder := New(path)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	other := New(path)
	acquired, err := other.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestFileLock_TryLockAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := New(path)
	require.NoError(t, first.Lock())
	require.NoError(t, first.Unlock())

	second := New(path)
	acquired, err := second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, AtomicWrite(path, []byte(`{"ok":true}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestAtomicWrite_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
