package controlapi

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/scheduler"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

type memStore struct{ snap *state.Snapshot }

func (m *memStore) Load() *state.Snapshot {
	if m.snap == nil {
		return state.EmptySnapshot()
	}
	return m.snap
}

func (m *memStore) Save(snap *state.Snapshot) error {
	m.snap = snap
	return nil
}

func TestAddFolderAddJobObserveDelegateToScheduler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("supervisor launches jobs through /bin/sh")
	}

	sched := scheduler.New(4, &memStore{}, t.TempDir())
	api := New(sched)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_mesh.bat"), []byte("echo hi\n"), 0o755))

	folder, ok := api.AddFolder(dir)
	require.True(t, ok)
	require.Len(t, folder.Jobs, 1)

	counts := api.Observe()
	assert.Equal(t, 4, counts.TotalCores)
	require.Len(t, counts.Snapshot.Folders, 1)

	api.StartQueue()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := api.Observe().Snapshot
		if snap.Folders[0].Status == state.StatusCompleted {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for folder to complete")
}

func TestRemoveFolderReturnsFalseForUnknownID(t *testing.T) {
	sched := scheduler.New(4, &memStore{}, t.TempDir())
	api := New(sched)
	assert.False(t, api.RemoveFolder("nonexistent"))
}
