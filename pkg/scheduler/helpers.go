package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

// findJobLocked returns a job and its owning folder by id, or (nil, nil)
// if no such job exists. Callers must hold s.mu.
func (s *Scheduler) findJobLocked(id string) (*state.Job, *state.Folder) {
	for _, folder := range s.snapshot.Folders {
		for _, job := range folder.Jobs {
			if job.ID == id {
				return job, folder
			}
		}
	}
	return nil, nil
}

// usedCoresLocked sums required_cores over every Running job. Callers
// must hold s.mu.
func (s *Scheduler) usedCoresLocked() int {
	used := 0
	for _, folder := range s.snapshot.Folders {
		for _, job := range folder.Jobs {
			if job.Status == state.StatusRunning {
				used += job.RequiredCores
			}
		}
	}
	return used
}

func folderHasRunning(folder *state.Folder) bool {
	for _, job := range folder.Jobs {
		if job.Status == state.StatusRunning {
			return true
		}
	}
	return false
}

// folderIsDead reports whether any job in the folder is Failed or
// Cancelled, per spec.md §4.5 admission step 2 ("dead folder").
func folderIsDead(folder *state.Folder) bool {
	for _, job := range folder.Jobs {
		if job.Status == state.StatusFailed || job.Status == state.StatusCancelled {
			return true
		}
	}
	return false
}

// firstQueuedJob returns the first Queued job in folder and its index,
// or (nil, -1) if none.
func firstQueuedJob(folder *state.Folder) (*state.Job, int) {
	for i, job := range folder.Jobs {
		if job.Status == state.StatusQueued {
			return job, i
		}
	}
	return nil, -1
}

// allBeforeCompleted reports whether every job before idx in folder has
// status Completed, the "defense in depth" check of spec.md §4.5 step 4.
func allBeforeCompleted(folder *state.Folder, idx int) bool {
	for i := 0; i < idx; i++ {
		if folder.Jobs[i].Status != state.StatusCompleted {
			return false
		}
	}
	return true
}

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// sanitizeForPath replaces filesystem-invalid characters with "_", per
// spec.md §4.5 step 1.
func sanitizeForPath(s string) string {
	return invalidPathChars.ReplaceAllString(s, "_")
}

// buildLogPath constructs <log_root>/<yyyyMMdd_HHmmss>_<folder>_<job>_<id>.log.
// Sub-second collisions within the same second are disambiguated by the
// embedded job id, per spec.md §4.5.
func buildLogPath(logRoot, folderName, jobName, jobID string, at time.Time) string {
	stamp := at.Format("20060102_150405")
	fname := fmt.Sprintf("%s_%s_%s_%s.log", stamp, sanitizeForPath(folderName), sanitizeForPath(jobName), jobID)
	return filepath.Join(logRoot, fname)
}

// folderSummary is a point-in-time, lock-free snapshot of what
// writeFolderSummaryFile needs, built while s.mu is held so the actual
// file write can happen after it is released.
type folderSummary struct {
	path string
	body string
}

// buildFolderSummaryLocked renders the human-readable per-folder summary
// body for <folder.path>/batch_runner_summary.log, per spec.md §6.
// Callers must hold s.mu; the returned value carries no live references
// to scheduler state.
func buildFolderSummaryLocked(folder *state.Folder) folderSummary {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch Runner Summary: %s\n", folder.Name)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))

	for _, job := range folder.Jobs {
		fmt.Fprintf(&b, "Job: %s\n", job.Name)
		fmt.Fprintf(&b, "  Status: %s\n", job.Status)
		if job.StartedAt != nil {
			fmt.Fprintf(&b, "  Started: %s\n", job.StartedAt.Format(time.RFC3339))
		}
		if job.EndedAt != nil {
			fmt.Fprintf(&b, "  Ended: %s\n", job.EndedAt.Format(time.RFC3339))
		}
		if job.StartedAt != nil && job.EndedAt != nil {
			fmt.Fprintf(&b, "  Elapsed: %s\n", formatElapsed(job.EndedAt.Sub(*job.StartedAt)))
		}
		if job.ExitCode != nil {
			fmt.Fprintf(&b, "  ExitCode: %d\n", *job.ExitCode)
		} else {
			fmt.Fprintf(&b, "  ExitCode: unknown\n")
		}
		fmt.Fprintln(&b)
	}

	return folderSummary{
		path: filepath.Join(folder.Path, "batch_runner_summary.log"),
		body: b.String(),
	}
}

// write performs the actual (best-effort) file write, outside any lock.
func (fs folderSummary) write() {
	if err := os.WriteFile(fs.path, []byte(fs.body), 0o644); err != nil {
		logging.Debugf("scheduler: failed to write folder summary at %s: %v", fs.path, err)
	}
}

// formatElapsed renders a duration as HH:MM:SS, per spec.md §6.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
