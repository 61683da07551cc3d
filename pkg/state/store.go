package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/inspector"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
)

// Store loads and saves a Snapshot as a single JSON document at Path,
// per spec.md §6.
type Store struct {
	Path string
}

// NewStore returns a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the snapshot from disk and normalizes it. An absent or
// unparsable file yields an empty, already-normalized snapshot rather
// than an error, per spec.md §4.4 and §7 ("State-file corruption on
// load: treat as empty snapshot; do not delete the file").
func (s *Store) Load() *Snapshot {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		logging.Debugf("state: no existing snapshot at %s: %v", s.Path, err)
		snap := EmptySnapshot()
		Normalize(snap)
		return snap
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.Debugf("state: snapshot at %s is unparsable, starting empty: %v", s.Path, err)
		empty := EmptySnapshot()
		Normalize(empty)
		return empty
	}

	Normalize(&snap)
	return &snap
}

// Save serializes the full snapshot as indented JSON, writing it to a
// temporary file beside Path and renaming that over Path. Save is best-effort: failures are reported to the caller but
// never panic or abort, per spec.md §4.4.
func (s *Store) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// Normalize applies the load-time repair rules of spec.md §4.4:
//   - fill empty ids with fresh unique ids
//   - fill empty names from file names
//   - re-run RequiredCores for jobs whose script still exists; clamp
//     missing values to 1
//   - fill default timestamps
//   - demote any Running job to Queued, clearing its run-specific fields,
//     and recompute its folder's aggregate status
//
// Normalize is idempotent: normalize(normalize(s)) == normalize(s), and
// it never leaves a Job with status Running.
func Normalize(snap *Snapshot) {
	if snap.Folders == nil {
		snap.Folders = []*Folder{}
	}

	for _, folder := range snap.Folders {
		if folder.ID == "" {
			folder.ID = uuid.NewString()
		}
		if folder.Name == "" {
			folder.Name = filepath.Base(folder.Path)
		}

		for _, job := range folder.Jobs {
			normalizeJob(job)
		}

		folder.Status = RecomputeFolderStatus(folder)
	}
}

func normalizeJob(job *Job) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Name == "" {
		job.Name = filepath.Base(job.BatPath)
	}
	if job.AddedAt.IsZero() {
		job.AddedAt = time.Now()
	}

	if _, err := os.Stat(job.BatPath); err == nil {
		job.RequiredCores = inspector.RequiredCores(job.BatPath)
	}
	if job.RequiredCores < 1 {
		job.RequiredCores = 1
	}

	if job.Status == StatusRunning {
		job.Status = StatusQueued
		job.StartedAt = nil
		job.EndedAt = nil
		job.ExitCode = nil
		job.LogPath = nil
	}
}

// RecomputeFolderStatus derives a folder's aggregate status from its
// member jobs, per spec.md §4.5 ("Folder aggregate status").
func RecomputeFolderStatus(folder *Folder) JobStatus {
	if len(folder.Jobs) == 0 {
		return StatusQueued
	}

	anyRunning := false
	allCompleted := true
	var lastTerminal JobStatus
	haveTerminal := false

	for _, job := range folder.Jobs {
		if job.Status == StatusRunning {
			anyRunning = true
		}
		if job.Status != StatusCompleted {
			allCompleted = false
		}
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			lastTerminal = job.Status
			haveTerminal = true
		}
	}

	switch {
	case anyRunning:
		return StatusRunning
	case allCompleted:
		return StatusCompleted
	case haveTerminal && lastTerminal == StatusFailed:
		return StatusFailed
	case haveTerminal && lastTerminal == StatusCancelled:
		return StatusCancelled
	default:
		return StatusQueued
	}
}
