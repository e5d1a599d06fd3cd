package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, dest string) *Manager {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	mgr, err := NewManager(dest)
	require.NoError(t, err)
	return mgr
}

func TestCreateAndLoad(t *testing.T) {
	mgr := newTestManager(t, "out/engagement.csv")

	assert.False(t, mgr.Exists())
	missing, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, missing)

	cp, err := mgr.Create(1000, 250)
	require.NoError(t, err)
	assert.Equal(t, 250, cp.NextOffset)
	assert.True(t, mgr.Exists())

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	want, err := filepath.Abs("out/engagement.csv")
	require.NoError(t, err)
	assert.Equal(t, want, loaded.Destination)
	assert.Equal(t, 1000, loaded.Total)
	assert.Equal(t, 250, loaded.NextOffset)
	assert.Equal(t, 1, loaded.Version)
	assert.False(t, loaded.Done())
}

func TestUpdateProgress(t *testing.T) {
	mgr := newTestManager(t, "engagement.json")

	cp, err := mgr.Create(600, 0)
	require.NoError(t, err)
	before := cp.LastUpdated

	require.NoError(t, mgr.UpdateProgress(cp, 600, 3, 598))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 600, loaded.NextOffset)
	assert.Equal(t, 3, loaded.BatchesDone)
	assert.Equal(t, 598, loaded.Rows)
	assert.True(t, loaded.Done())
	assert.False(t, loaded.LastUpdated.Before(before))
}

func TestDelete(t *testing.T) {
	mgr := newTestManager(t, "engagement.csv")

	_, err := mgr.Create(10, 0)
	require.NoError(t, err)
	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())

	// deleting twice is fine
	assert.NoError(t, mgr.Delete())
}

func TestSidecarPerDestination(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	a, err := NewManager("a/engagement.csv")
	require.NoError(t, err)
	b, err := NewManager("b/engagement.csv")
	require.NoError(t, err)
	r, err := NewManager("redis://localhost:6379/0")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path()), "engagement.csv-"))
	assert.NotContains(t, filepath.Base(r.Path()), ":")
}

func TestSameDestinationSpelledDifferently(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	first, err := NewManager("out.csv")
	require.NoError(t, err)
	_, err = first.Create(500, 0)
	require.NoError(t, err)

	second, err := NewManager("./out.csv")
	require.NoError(t, err)
	assert.Equal(t, first.Path(), second.Path())

	cp, err := second.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 500, cp.Total)

	r, err := NewManager("redis://localhost:6379/0")
	require.NoError(t, err)
	created, err := r.Create(10, 0)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", created.Destination)
}

func TestLoadRejectsForeignCheckpoint(t *testing.T) {
	mgr := newTestManager(t, "engagement.csv")
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"destination":"other.csv","next_offset":5}`), 0644))

	_, err := mgr.Load()
	assert.ErrorContains(t, err, "belongs to other.csv")
}

func TestLoadCorrupted(t *testing.T) {
	mgr := newTestManager(t, "engagement.csv")
	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0644))

	_, err := mgr.Load()
	assert.ErrorContains(t, err, "failed to decode checkpoint")
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	mgr := newTestManager(t, "engagement.csv")

	cp, err := mgr.Create(500, 0)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, mgr.UpdateProgress(cp, i*100, i, i*100))
	}

	entries, err := os.ReadDir(filepath.Dir(mgr.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(mgr.Path()), entries[0].Name())
}
