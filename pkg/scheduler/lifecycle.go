package scheduler

import (
	"time"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logsink"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/supervisor"
)

// StartQueue sets the queue running flag and runs an admission pass, per
// spec.md §4.5.
func (s *Scheduler) StartQueue() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.tryStartJobs()
}

// PauseQueue clears the queue running flag. Already-running jobs are
// unaffected, per spec.md §4.5.
func (s *Scheduler) PauseQueue() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// CancelJob implements spec.md §4.5 "Cancel". A Running job's tree is
// force-killed and the completion path finalizes its state; a Queued job
// is cancelled immediately; a terminal job is a no-op. Returns false only
// if no such job exists.
func (s *Scheduler) CancelJob(id string) bool {
	s.mu.Lock()
	job, folder := s.findJobLocked(id)
	if job == nil {
		s.mu.Unlock()
		return false
	}

	switch job.Status {
	case state.StatusRunning:
		s.cancelIntents[id] = true
		handle := s.handles[id]
		s.mu.Unlock()
		if handle != nil {
			handle.Kill()
		}
		return true

	case state.StatusQueued:
		now := time.Now()
		job.Status = state.StatusCancelled
		job.EndedAt = &now
		folder.Status = state.RecomputeFolderStatus(folder)
		snap := s.cloneSnapshotLocked()
		s.mu.Unlock()
		s.persist(snap)
		s.tryStartJobs()
		return true

	default:
		s.mu.Unlock()
		return true
	}
}

// RestartJob implements spec.md §4.5 "Restart". A Running job is killed
// and re-queued once its completion is reported; any other job is reset
// and re-queued immediately, followed by an admission pass.
func (s *Scheduler) RestartJob(id string) bool {
	s.mu.Lock()
	job, folder := s.findJobLocked(id)
	if job == nil {
		s.mu.Unlock()
		return false
	}

	if job.Status == state.StatusRunning {
		s.restartIntents[id] = true
		handle := s.handles[id]
		s.mu.Unlock()
		if handle != nil {
			handle.Kill()
		}
		return true
	}

	resetJobForRequeue(job)
	folder.Status = state.RecomputeFolderStatus(folder)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	s.tryStartJobs()
	return true
}

func resetJobForRequeue(job *state.Job) {
	job.Status = state.StatusQueued
	job.StartedAt = nil
	job.EndedAt = nil
	job.ExitCode = nil
	job.LogPath = nil
}

// runCompletionLoop consumes supervisor completions one at a time,
// keeping on_exit serialized with every other scheduler action.
func (s *Scheduler) runCompletionLoop() {
	for comp := range s.completions {
		s.onExit(comp)
	}
}

// onExit implements spec.md §4.5 "Completion (on_exit)".
func (s *Scheduler) onExit(comp supervisor.Completion) {
	s.mu.Lock()
	delete(s.handles, comp.JobID)
	restart := s.restartIntents[comp.JobID]
	cancel := s.cancelIntents[comp.JobID]
	delete(s.restartIntents, comp.JobID)
	delete(s.cancelIntents, comp.JobID)

	job, folder := s.findJobLocked(comp.JobID)
	if job == nil {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	job.EndedAt = &now
	job.ExitCode = comp.ExitCode

	logPath := ""
	if job.LogPath != nil {
		logPath = *job.LogPath
	}

	var footerLabel string
	var summary *folderSummary

	switch {
	case restart:
		footerLabel = "Restarted"
		resetJobForRequeue(job)

	case cancel:
		footerLabel = "Cancelled"
		job.Status = state.StatusCancelled

	case comp.ExitCode != nil && *comp.ExitCode == 0:
		footerLabel = "Completed"
		job.Status = state.StatusCompleted
		if allCompleted(folder) {
			built := buildFolderSummaryLocked(folder)
			summary = &built
		}

	default:
		footerLabel = "Failed"
		job.Status = state.StatusFailed
		if s.snapshot.Settings.AutoRetryFailedJobs && job.RetryCount < 1 {
			job.RetryCount++
			footerLabel = "Failed (auto retry)"
			resetJobForRequeue(job)
		}
	}

	folder.Status = state.RecomputeFolderStatus(folder)
	snap := s.cloneSnapshotLocked()
	s.mu.Unlock()

	if logPath != "" {
		logsink.AppendFooter(logPath, now, footerLabel, comp.ExitCode)
	}
	if summary != nil {
		summary.write()
	}
	s.persist(snap)
	s.tryStartJobs()
}

func allCompleted(folder *state.Folder) bool {
	for _, job := range folder.Jobs {
		if job.Status != state.StatusCompleted {
			return false
		}
	}
	return true
}
