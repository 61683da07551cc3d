package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logsink"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/supervisor"
)

// startPlan is the I/O-free result of committing a job's transition to
// Running; the actual spawn happens after the mutex is released.
type startPlan struct {
	jobID       string
	command     string
	workDir     string
	logPath     string
	showConsole bool
	jobInfo     logsink.JobInfo
	startedAt   time.Time
}

// tryStartJobs is the admission pass of spec.md §4.5: parallel across
// folders, strictly sequential within a folder. Re-entrancy is suppressed
// by the admitting guard; the pass holds s.mu for its scan-and-commit
// phase only, then spawns children after releasing it.
func (s *Scheduler) tryStartJobs() {
	s.mu.Lock()
	if !s.running || s.admitting {
		s.mu.Unlock()
		return
	}
	s.admitting = true

	available := s.totalCores - s.usedCoresLocked()
	if available < 0 {
		available = 0
	}

	var plans []startPlan
	for _, folder := range s.snapshot.Folders {
		if folderHasRunning(folder) {
			continue
		}
		if folderIsDead(folder) {
			continue
		}
		next, idx := firstQueuedJob(folder)
		if next == nil {
			continue
		}
		if !allBeforeCompleted(folder, idx) {
			continue
		}
		if next.RequiredCores > available {
			continue
		}

		plans = append(plans, s.beginStartLocked(folder, next))
		available -= next.RequiredCores
	}

	finished := !s.anyJobRunningLocked() && !s.anyJobQueuedLocked()
	if finished {
		s.running = false
	}
	s.admitting = false

	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)

	for _, plan := range plans {
		s.launch(plan)
	}

	if finished {
		s.emit(Event{Type: EventQueueFinished})
	}
}

func (s *Scheduler) anyJobRunningLocked() bool {
	for _, folder := range s.snapshot.Folders {
		if folderHasRunning(folder) {
			return true
		}
	}
	return false
}

func (s *Scheduler) anyJobQueuedLocked() bool {
	for _, folder := range s.snapshot.Folders {
		if job, _ := firstQueuedJob(folder); job != nil {
			return true
		}
	}
	return false
}

// beginStartLocked commits the state-only half of "starting a job"
// (spec.md §4.5 steps 1-2): compute the log path, transition to Running,
// stamp started_at, clear ended_at/exit_code, set log_path. Callers must
// hold s.mu and perform the actual spawn (step 3 onward) after releasing
// it via launch.
func (s *Scheduler) beginStartLocked(folder *state.Folder, job *state.Job) startPlan {
	now := time.Now()
	logPath := buildLogPath(s.logRoot, folder.Name, job.Name, job.ID, now)

	job.Status = state.StatusRunning
	job.StartedAt = &now
	job.EndedAt = nil
	job.ExitCode = nil
	job.LogPath = &logPath
	folder.Status = state.RecomputeFolderStatus(folder)

	workDir := filepath.Dir(job.BatPath)
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}

	return startPlan{
		jobID:       job.ID,
		command:     job.BatPath,
		workDir:     workDir,
		logPath:     logPath,
		showConsole: s.snapshot.Settings.ShowConsoleWindow,
		jobInfo: logsink.JobInfo{
			Name:          job.Name,
			BatPath:       job.BatPath,
			RequiredCores: job.RequiredCores,
		},
		startedAt: now,
	}
}

// launch performs the I/O half of starting a job (spec.md §4.5 steps
// 3-6): write the header, spawn the child through the supervisor, and
// register its handle. On spawn failure the job is transitioned directly
// to Failed and another admission pass is run.
func (s *Scheduler) launch(p startPlan) {
	logsink.WriteHeader(p.logPath, p.jobInfo, p.startedAt)

	handle, err := supervisor.Start(supervisor.Config{
		JobID:       p.jobID,
		Command:     p.command,
		WorkDir:     p.workDir,
		LogPath:     p.logPath,
		ShowConsole: p.showConsole,
	}, s.completions)

	if err != nil {
		logsink.AppendLine(p.logPath, fmt.Sprintf("failed to start job: %v", err))
		s.failSpawn(p.jobID, p.logPath)
		s.tryStartJobs()
		return
	}

	s.mu.Lock()
	s.handles[p.jobID] = handle
	s.mu.Unlock()
}

// failSpawn transitions a job directly to Failed with no exit code, per
// spec.md §4.5 ("If spawn itself fails ... transition the job directly to
// Failed with ended_at = now").
func (s *Scheduler) failSpawn(jobID, logPath string) {
	s.mu.Lock()
	job, folder := s.findJobLocked(jobID)
	if job == nil {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = state.StatusFailed
	job.EndedAt = &now
	folder.Status = state.RecomputeFolderStatus(folder)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	logsink.AppendFooter(logPath, now, "Failed", nil)
	s.persist(snap)
}
