package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/inspector"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/supervisor"
)

// KnownScriptNames is the fixed, ordered sequence of script names
// add_folder looks for in an enrolled folder, per spec.md §4.7
// ("up to five known script names in fixed order; skip missing").
var KnownScriptNames = []string{
	"1_mesh.bat",
	"2_decompose.bat",
	"3_run.bat",
	"4_reconstruct.bat",
	"5_post.bat",
}

// doneMarkers are the files whose presence marks a folder as already
// completed by a prior run, per spec.md §4.7.
var doneMarkers = []string{"batch_runner_summary.log", "save_results.log"}

func folderAlreadyDone(path string) bool {
	for _, marker := range doneMarkers {
		if _, err := os.Stat(filepath.Join(path, marker)); err == nil {
			return true
		}
	}
	return false
}

// AddFolder enrolls a folder, wiring up to len(KnownScriptNames) jobs for
// whichever of those scripts are present, per spec.md §4.7. It refuses a
// path that is not an existing directory, and folders already present
// (case-insensitive path match) or already completed. Returns the new
// folder and true on success.
func (s *Scheduler) AddFolder(path string) (*state.Folder, bool) {
	clean := filepath.Clean(path)

	if fi, err := os.Stat(clean); err != nil || !fi.IsDir() {
		return nil, false
	}
	if folderAlreadyDone(clean) {
		return nil, false
	}

	// ScriptInspector reads files from disk; keep that off the mutex.
	candidates := make([]*state.Job, 0, len(KnownScriptNames))
	for _, name := range KnownScriptNames {
		scriptPath := filepath.Join(clean, name)
		if _, err := os.Stat(scriptPath); err != nil {
			continue
		}
		candidates = append(candidates, &state.Job{
			ID:            uuid.NewString(),
			BatPath:       scriptPath,
			Name:          name,
			RequiredCores: inspector.RequiredCores(scriptPath),
			Status:        state.StatusQueued,
			AddedAt:       time.Now(),
		})
	}

	s.mu.Lock()
	for _, f := range s.snapshot.Folders {
		if strings.EqualFold(filepath.Clean(f.Path), clean) {
			s.mu.Unlock()
			return nil, false
		}
	}

	folder := &state.Folder{
		ID:     uuid.NewString(),
		Name:   filepath.Base(clean),
		Path:   clean,
		Status: state.StatusQueued,
		Jobs:   candidates,
	}
	s.snapshot.Folders = append(s.snapshot.Folders, folder)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	s.tryStartJobs()
	return folder, true
}

// AddJob wraps a single script in a synthetic one-job folder, per
// spec.md §4.7.
func (s *Scheduler) AddJob(path string) (*state.Folder, bool) {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		return nil, false
	}
	cores := inspector.RequiredCores(clean)

	folder := &state.Folder{
		ID:     uuid.NewString(),
		Name:   filepath.Base(clean),
		Path:   filepath.Dir(clean),
		Status: state.StatusQueued,
		Jobs: []*state.Job{{
			ID:            uuid.NewString(),
			BatPath:       clean,
			Name:          filepath.Base(clean),
			RequiredCores: cores,
			Status:        state.StatusQueued,
			AddedAt:       time.Now(),
		}},
	}

	s.mu.Lock()
	s.snapshot.Folders = append(s.snapshot.Folders, folder)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	s.tryStartJobs()
	return folder, true
}

// RemoveFolder cancels any Running jobs within the folder, then deletes
// it, per spec.md §4.7.
func (s *Scheduler) RemoveFolder(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, f := range s.snapshot.Folders {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	folder := s.snapshot.Folders[idx]
	var handles []*supervisor.Handle
	for _, job := range folder.Jobs {
		if job.Status == state.StatusRunning {
			s.cancelIntents[job.ID] = true
			if h := s.handles[job.ID]; h != nil {
				handles = append(handles, h)
			}
		}
	}

	s.snapshot.Folders = append(s.snapshot.Folders[:idx], s.snapshot.Folders[idx+1:]...)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	for _, h := range handles {
		h.Kill()
	}
	return true
}

// ReorderFolders moves the folder at index from to index to within the
// top-level sequence, per spec.md §4.7. Out-of-bounds indices are a
// no-op, per spec.md §7 ("reorder out of bounds: no-op").
func (s *Scheduler) ReorderFolders(from, to int) bool {
	s.mu.Lock()
	n := len(s.snapshot.Folders)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return false
	}

	folder := s.snapshot.Folders[from]
	s.snapshot.Folders = append(s.snapshot.Folders[:from], s.snapshot.Folders[from+1:]...)
	s.snapshot.Folders = append(s.snapshot.Folders[:to], append([]*state.Folder{folder}, s.snapshot.Folders[to:]...)...)

	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return true
}

// ReorderJobs moves the job at index from to index to within folderID's
// job list, per spec.md §4.7.
func (s *Scheduler) ReorderJobs(folderID string, from, to int) bool {
	s.mu.Lock()
	var folder *state.Folder
	for _, f := range s.snapshot.Folders {
		if f.ID == folderID {
			folder = f
			break
		}
	}
	if folder == nil {
		s.mu.Unlock()
		return false
	}

	n := len(folder.Jobs)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return false
	}

	job := folder.Jobs[from]
	folder.Jobs = append(folder.Jobs[:from], folder.Jobs[from+1:]...)
	folder.Jobs = append(folder.Jobs[:to], append([]*state.Job{job}, folder.Jobs[to:]...)...)

	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return true
}
