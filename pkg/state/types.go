// Package state defines the persisted data model (spec.md §3) and the
// StateStore that loads/saves it as a single JSON document (spec.md §4.4,
// §6).
package state

import (
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var jobStatusNames = [...]string{"Queued", "Running", "Completed", "Failed", "Cancelled"}

func (s JobStatus) String() string {
	if int(s) < 0 || int(s) >= len(jobStatusNames) {
		return "Queued"
	}
	return jobStatusNames[s]
}

// MarshalText implements encoding.TextMarshaler so JobStatus round-trips
// through JSON as its symbolic name, per spec.md §4.4 ("Save serializes
// ... enum values written as their symbolic names").
func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown or empty
// values default to Queued, matching StateStore's load-time leniency.
func (s *JobStatus) UnmarshalText(text []byte) error {
	for i, name := range jobStatusNames {
		if name == string(text) {
			*s = JobStatus(i)
			return nil
		}
	}
	*s = StatusQueued
	return nil
}

// Job is a single script invocation, per spec.md §3.
type Job struct {
	ID            string     `json:"Id"`
	BatPath       string     `json:"BatPath"`
	Name          string     `json:"Name"`
	RequiredCores int        `json:"RequiredCores"`
	Status        JobStatus  `json:"Status"`
	AddedAt       time.Time  `json:"AddedAt"`
	StartedAt     *time.Time `json:"StartedAt"`
	EndedAt       *time.Time `json:"EndedAt"`
	ExitCode      *int       `json:"ExitCode"`
	LogPath       *string    `json:"LogPath"`
	RetryCount    int        `json:"RetryCount"`
}

// Folder is an ordered group of jobs sharing a working directory, per
// spec.md §3.
type Folder struct {
	ID         string    `json:"Id"`
	Name       string    `json:"Name"`
	Path       string    `json:"Path"`
	Status     JobStatus `json:"Status"`
	IsExpanded bool      `json:"IsExpanded"`
	Jobs       []*Job    `json:"Jobs"`
}

// Settings are the persisted user-configurable switches, per spec.md §3.
type Settings struct {
	AutoRetryFailedJobs bool `json:"AutoRetryFailedJobs"`
	ShowConsoleWindow   bool `json:"ShowConsoleWindow"`
}

// Snapshot is the whole persisted document, per spec.md §3 and §6.
type Snapshot struct {
	Folders  []*Folder `json:"Folders"`
	Settings Settings  `json:"Settings"`
}

// EmptySnapshot returns a zero-value snapshot, used whenever the state
// file is absent or unparsable (spec.md §4.4).
func EmptySnapshot() *Snapshot {
	return &Snapshot{Folders: []*Folder{}}
}
