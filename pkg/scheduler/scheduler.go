// Package scheduler implements the admission, dispatch, and completion
// engine described in spec.md §4.5: a core-budgeted admission pass across
// folders with per-folder sequential ordering, the per-job state machine,
// cancellation/restart, auto-retry, and the queue_finished event.
//
// All mutation of scheduler/job/folder state is serialized behind a
// single mutex (spec.md §5: "the contract is that try_start_jobs, on_exit,
// and Control API handlers observe each other's writes as if strictly
// serialized"). Suspension points — spawning, log I/O, persistence — take
// state, release the mutex, perform the I/O, then re-enter to commit,
// exactly as spec.md §5 requires.
package scheduler

import (
	"encoding/json"
	"sync"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/state"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/supervisor"
)

// EventType identifies events published on the scheduler's event bus.
type EventType string

// EventQueueFinished fires when an admission pass ends with no Running
// and no Queued jobs while the queue was Running; the queue is then set
// Paused. It fires at most once per start/pause cycle (spec.md §4.5).
const EventQueueFinished EventType = "queue_finished"

// Event is a message published on the scheduler's event bus.
type Event struct {
	Type EventType
}

// Counts is the result of an Observe call: the current core budget view
// and an immutable snapshot of the whole system (spec.md §4.7).
type Counts struct {
	TotalCores     int
	UsedCores      int
	AvailableCores int
	Snapshot       *state.Snapshot
}

// Scheduler owns the core budget, the job/folder snapshot, and the single
// serialization context guarding all of it.
type Scheduler struct {
	mu sync.Mutex

	totalCores int
	logRoot    string
	store      store

	snapshot  *state.Snapshot
	running   bool // queue running flag
	admitting bool // re-entrancy guard for tryStartJobs

	handles        map[string]*supervisor.Handle
	restartIntents map[string]bool
	cancelIntents  map[string]bool
	completions    chan supervisor.Completion

	onChange func(*state.Snapshot)

	subsMu sync.Mutex
	subs   []chan Event
}

// store is the persistence dependency, narrowed to what the scheduler
// needs so tests can fake it without constructing a *state.Store.
type store interface {
	Load() *state.Snapshot
	Save(*state.Snapshot) error
}

// New constructs a Scheduler with the given physical core budget,
// persistence backend, and log root directory. The returned scheduler has
// an empty snapshot until LoadFromStore is called.
func New(totalCores int, st store, logRoot string) *Scheduler {
	s := &Scheduler{
		totalCores:     totalCores,
		logRoot:        logRoot,
		store:          st,
		snapshot:       state.EmptySnapshot(),
		handles:        make(map[string]*supervisor.Handle),
		restartIntents: make(map[string]bool),
		cancelIntents:  make(map[string]bool),
		completions:    make(chan supervisor.Completion, 16),
	}
	go s.runCompletionLoop()
	return s
}

// SetOnChange registers a callback invoked after every snapshot mutation
// that was persisted, letting a caller (e.g. a UI notification channel)
// observe changes without polling.
func (s *Scheduler) SetOnChange(fn func(*state.Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// LoadFromStore replaces the in-memory snapshot with what the store
// loads (already normalized per spec.md §4.4, which guarantees no job is
// left Running).
func (s *Scheduler) LoadFromStore() {
	snap := s.store.Load()
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// ApplyDefaults seeds the snapshot's Settings from the daemon's ambient
// config (SPEC_FULL.md's "auto-retry default, console-window default")
// the first time the daemon runs against a snapshot that has never had
// its Settings customized. It is a no-op once either setting has been
// turned on, so it never clobbers a persisted state.json in which either
// switch is on; a snapshot with both switches off takes the config values
// on every call (spec.md §4.4's normalize-on-load never resets Settings,
// so this is the only point they get seeded).
func (s *Scheduler) ApplyDefaults(autoRetryFailedJobs, showConsoleWindow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.Settings.AutoRetryFailedJobs || s.snapshot.Settings.ShowConsoleWindow {
		return
	}
	s.snapshot.Settings.AutoRetryFailedJobs = autoRetryFailedJobs
	s.snapshot.Settings.ShowConsoleWindow = showConsoleWindow
}

// Observe returns the current core-budget counts and an immutable
// snapshot view, per spec.md §4.7.
func (s *Scheduler) Observe() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.usedCoresLocked()
	available := s.totalCores - used
	if available < 0 {
		available = 0
	}
	return Counts{
		TotalCores:     s.totalCores,
		UsedCores:      used,
		AvailableCores: available,
		Snapshot:       s.cloneSnapshotLocked(),
	}
}

// Subscribe returns a channel on which scheduler events (currently just
// EventQueueFinished) are published. The channel is buffered; slow
// subscribers drop events rather than block the scheduler.
func (s *Scheduler) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Scheduler) emit(ev Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			logging.Debugf("scheduler: dropping event %s for slow subscriber", ev.Type)
		}
	}
}

func (s *Scheduler) persist(snap *state.Snapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(snap); err != nil {
		logging.Debugf("scheduler: failed to persist snapshot: %v", err)
	}
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// cloneSnapshotLocked returns a deep, independent copy of the current
// snapshot via a JSON round-trip — simple, and correct for a document
// this size, matching the fact that the only other representation of
// this data the system ever produces is JSON (spec.md §6).
func (s *Scheduler) cloneSnapshotLocked() *state.Snapshot {
	data, err := json.Marshal(s.snapshot)
	if err != nil {
		logging.Debugf("scheduler: failed to clone snapshot: %v", err)
		return state.EmptySnapshot()
	}
	var clone state.Snapshot
	if err := json.Unmarshal(data, &clone); err != nil {
		logging.Debugf("scheduler: failed to clone snapshot: %v", err)
		return state.EmptySnapshot()
	}
	return &clone
}
