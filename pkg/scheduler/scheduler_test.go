package scheduler

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

// memStore is a non-persisting store fake, so tests don't touch disk for
// snapshot persistence while still exercising Observe.
type memStore struct {
	snap *state.Snapshot
}

func (m *memStore) Load() *state.Snapshot {
	if m.snap == nil {
		return state.EmptySnapshot()
	}
	state.Normalize(m.snap)
	return m.snap
}

func (m *memStore) Save(snap *state.Snapshot) error {
	m.snap = snap
	return nil
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func newTestScheduler(t *testing.T, totalCores int) *Scheduler {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("supervisor launches jobs through /bin/sh")
	}
	logRoot := t.TempDir()
	s := New(totalCores, &memStore{}, logRoot)
	return s
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func folderByID(snap *state.Snapshot, id string) *state.Folder {
	for _, f := range snap.Folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func TestAddFolderAndSingleJobRuns(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "echo meshing\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)
	require.Len(t, folder.Jobs, 1)

	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Status == state.StatusCompleted
	})
}

func TestAddFolderSkipsUnknownScriptNames(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "echo mesh\n")
	writeScript(t, dir, "notes.txt", "irrelevant\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)
	assert.Len(t, folder.Jobs, 1)
}

func TestAddFolderRefusesDuplicatePath(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "echo mesh\n")

	_, ok := s.AddFolder(dir)
	require.True(t, ok)

	_, ok = s.AddFolder(dir)
	assert.False(t, ok)
}

func TestOverCommitDeniesSecondJob(t *testing.T) {
	s := newTestScheduler(t, 2)

	dirA := t.TempDir()
	writeScript(t, dirA, "1_mesh.bat", "echo mpirun -np 2\nsleep 1\n")
	folderA, ok := s.AddFolder(dirA)
	require.True(t, ok)

	dirB := t.TempDir()
	writeScript(t, dirB, "1_mesh.bat", "echo mpirun -np 2\necho done\n")
	folderB, ok := s.AddFolder(dirB)
	require.True(t, ok)

	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folderA.ID)
		return got != nil && got.Jobs[0].Status == state.StatusRunning
	})

	// With only 2 total cores and folder A's job holding 2, folder B's
	// equally expensive job must not be admitted yet.
	snap := s.Observe().Snapshot
	assert.Equal(t, state.StatusQueued, folderByID(snap, folderB.ID).Jobs[0].Status)

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folderB.ID)
		return got != nil && got.Jobs[0].Status == state.StatusCompleted
	})
}

func TestParallelAcrossFolders(t *testing.T) {
	s := newTestScheduler(t, 8)

	dirA := t.TempDir()
	writeScript(t, dirA, "1_mesh.bat", "sleep 1\n")
	folderA, ok := s.AddFolder(dirA)
	require.True(t, ok)

	dirB := t.TempDir()
	writeScript(t, dirB, "1_mesh.bat", "sleep 1\n")
	folderB, ok := s.AddFolder(dirB)
	require.True(t, ok)

	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		snap := s.Observe().Snapshot
		a := folderByID(snap, folderA.ID)
		b := folderByID(snap, folderB.ID)
		return a != nil && b != nil &&
			a.Jobs[0].Status == state.StatusRunning &&
			b.Jobs[0].Status == state.StatusRunning
	})
}

func TestSequentialWithinFolder(t *testing.T) {
	s := newTestScheduler(t, 8)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "sleep 1\n")
	writeScript(t, dir, "2_decompose.bat", "echo decomposed\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)
	require.Len(t, folder.Jobs, 2)

	s.StartQueue()

	waitForCondition(t, 2*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Jobs[0].Status == state.StatusRunning
	})

	// The second job must still be Queued while the first is Running.
	snap := s.Observe().Snapshot
	assert.Equal(t, state.StatusQueued, folderByID(snap, folder.ID).Jobs[1].Status)

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Status == state.StatusCompleted
	})
}

func TestFailedJobMarksFolderFailedAndDoesNotHaltOthers(t *testing.T) {
	s := newTestScheduler(t, 8)

	dirA := t.TempDir()
	writeScript(t, dirA, "1_mesh.bat", "exit 1\n")
	folderA, ok := s.AddFolder(dirA)
	require.True(t, ok)

	dirB := t.TempDir()
	writeScript(t, dirB, "1_mesh.bat", "echo ok\n")
	folderB, ok := s.AddFolder(dirB)
	require.True(t, ok)

	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		snap := s.Observe().Snapshot
		a := folderByID(snap, folderA.ID)
		b := folderByID(snap, folderB.ID)
		return a != nil && a.Status == state.StatusFailed &&
			b != nil && b.Status == state.StatusCompleted
	})
}

func TestAutoRetryFailedJob(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "exit 3\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)

	s.mu.Lock()
	s.snapshot.Settings.AutoRetryFailedJobs = true
	s.mu.Unlock()

	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Jobs[0].RetryCount >= 1
	})

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Status == state.StatusFailed
	})
}

func TestCancelRunningJob(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "sleep 30\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)
	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Jobs[0].Status == state.StatusRunning
	})

	jobID := folderByID(s.Observe().Snapshot, folder.ID).Jobs[0].ID
	assert.True(t, s.CancelJob(jobID))

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Jobs[0].Status == state.StatusCancelled
	})
}

func TestRestartRunningJobRequeuesAfterKill(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "sleep 30\n")

	folder, ok := s.AddFolder(dir)
	require.True(t, ok)
	s.StartQueue()

	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		return got != nil && got.Jobs[0].Status == state.StatusRunning
	})

	before := folderByID(s.Observe().Snapshot, folder.ID).Jobs[0]
	jobID := before.ID
	require.NotNil(t, before.StartedAt)
	firstStart := *before.StartedAt
	assert.True(t, s.RestartJob(jobID))

	// The job must come back Queued, or already re-admitted with a newer
	// started_at than the run that was killed.
	waitForCondition(t, 5*time.Second, func() bool {
		got := folderByID(s.Observe().Snapshot, folder.ID)
		if got == nil {
			return false
		}
		job := got.Jobs[0]
		return job.Status == state.StatusQueued ||
			(job.Status == state.StatusRunning && job.StartedAt != nil && job.StartedAt.After(firstStart))
	})
}

func TestQueueFinishedEventFiresOnce(t *testing.T) {
	s := newTestScheduler(t, 4)
	dir := t.TempDir()
	writeScript(t, dir, "1_mesh.bat", "echo done\n")

	_, ok := s.AddFolder(dir)
	require.True(t, ok)

	events := s.Subscribe()
	s.StartQueue()

	select {
	case ev := <-events:
		assert.Equal(t, EventQueueFinished, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for queue_finished event")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %s", ev.Type)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCrashRecoveryNormalizesRunningJobs(t *testing.T) {
	now := time.Now()
	st := &memStore{
		snap: &state.Snapshot{
			Folders: []*state.Folder{
				{
					ID:   "f1",
					Name: "case01",
					Path: "/does/not/matter",
					Jobs: []*state.Job{
						{ID: "j1", BatPath: "/does/not/matter/1_mesh.bat", Status: state.StatusRunning, AddedAt: now},
					},
				},
			},
		},
	}

	s := New(4, st, t.TempDir())
	s.LoadFromStore()

	snap := s.Observe().Snapshot
	require.Len(t, snap.Folders, 1)
	assert.Equal(t, state.StatusQueued, snap.Folders[0].Jobs[0].Status)
}
