// Package controlapi is the synchronous mutation surface described in
// spec.md §4.7 — the only surface an external caller (a GUI, or the
// batchrunnerctl CLI over the optional RPC surface in pkg/rpc) is meant
// to use. Every operation here is idempotent where the operation table
// says so, and is followed by a persistence save, which
// pkg/scheduler's mutating methods already perform internally; this
// package exists to give that surface a stable, documented name and
// signature set independent of the scheduler's internal locking and
// snapshot representation.
package controlapi

import (
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/scheduler"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
)

// API is the Control API surface of spec.md §4.7.
type API struct {
	sched *scheduler.Scheduler
}

// New wraps a running Scheduler with the Control API surface.
func New(sched *scheduler.Scheduler) *API {
	return &API{sched: sched}
}

// AddFolder enrolls a folder, per spec.md §4.7. ok is false if the
// folder was missing, already enrolled, or already completed.
func (a *API) AddFolder(path string) (folder *state.Folder, ok bool) {
	return a.sched.AddFolder(path)
}

// AddJob wraps a single script in a synthetic one-job folder, per
// spec.md §4.7.
func (a *API) AddJob(path string) (folder *state.Folder, ok bool) {
	return a.sched.AddJob(path)
}

// RemoveFolder cancels any Running jobs within the folder, then deletes
// it, per spec.md §4.7.
func (a *API) RemoveFolder(folderID string) bool {
	return a.sched.RemoveFolder(folderID)
}

// ReorderFolders moves a folder within the top-level sequence.
func (a *API) ReorderFolders(from, to int) bool {
	return a.sched.ReorderFolders(from, to)
}

// ReorderJobs moves a job within a folder's job list.
func (a *API) ReorderJobs(folderID string, from, to int) bool {
	return a.sched.ReorderJobs(folderID, from, to)
}

// CancelJob cancels a job per its current state, per spec.md §4.5.
func (a *API) CancelJob(jobID string) bool {
	return a.sched.CancelJob(jobID)
}

// RestartJob restarts a job per its current state, per spec.md §4.5.
func (a *API) RestartJob(jobID string) bool {
	return a.sched.RestartJob(jobID)
}

// StartQueue permits admission passes to run.
func (a *API) StartQueue() {
	a.sched.StartQueue()
}

// PauseQueue suppresses future admission passes without touching
// already-running jobs.
func (a *API) PauseQueue() {
	a.sched.PauseQueue()
}

// Observe returns total/used/available cores and the immutable snapshot
// view, per spec.md §4.7.
func (a *API) Observe() scheduler.Counts {
	return a.sched.Observe()
}

// Events returns the channel scheduler events are published on (see
// scheduler.EventQueueFinished).
func (a *API) Events() <-chan scheduler.Event {
	return a.sched.Subscribe()
}
