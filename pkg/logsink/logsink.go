// Package logsink writes per-run log files: a header when a job starts, a
// footer when it finishes, and ad-hoc free-form lines in between. The
// header, footer and line writers never surface an I/O error to their
// caller; they are best-effort, matching the error-taxonomy in spec.md §7
// ("Transient I/O: swallow after best-effort; do not alter job state").
// Writer and Follow do return the error from opening the file.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
)

const timeLayout = time.RFC3339

// JobInfo is the subset of job fields the sink needs to render a header
// or footer. It is a plain struct rather than an import of pkg/state's
// Job type so that logsink has no dependency on the scheduler's data
// model.
type JobInfo struct {
	Name          string
	BatPath       string
	RequiredCores int
}

// WriteHeader creates path's parent directory if needed and writes the
// run header: started-at, display name, script path, required cores, and
// a separator line. Errors are logged and swallowed.
func WriteHeader(path string, job JobInfo, startedAt time.Time) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.Debugf("logsink: failed to create log dir for %s: %v", path, err)
		return
	}

	f, err := os.Create(path)
	if err != nil {
		logging.Debugf("logsink: failed to create log file %s: %v", path, err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "Started: %s\n", startedAt.Format(timeLayout))
	fmt.Fprintf(f, "Job: %s\n", job.Name)
	fmt.Fprintf(f, "Batch: %s\n", job.BatPath)
	fmt.Fprintf(f, "Cores: %d\n", job.RequiredCores)
	fmt.Fprintln(f, "--------------------------------------------------------------------------------")
}

// AppendFooter appends a blank line, ended-at, a status label, and the
// exit code (or "unknown" if none was retrievable).
func AppendFooter(path string, endedAt time.Time, statusLabel string, exitCode *int) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Debugf("logsink: failed to open log file %s for footer: %v", path, err)
		return
	}
	defer f.Close()

	fmt.Fprintln(f)
	fmt.Fprintf(f, "Ended: %s\n", endedAt.Format(timeLayout))
	fmt.Fprintf(f, "Status: %s\n", statusLabel)
	if exitCode == nil {
		fmt.Fprintln(f, "ExitCode: unknown")
	} else {
		fmt.Fprintf(f, "ExitCode: %d\n", *exitCode)
	}
}

// AppendLine appends a single timestamped free-form message, used for
// error annotations such as a spawn failure.
func AppendLine(path string, message string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Debugf("logsink: failed to open log file %s for line: %v", path, err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s] %s\n", time.Now().Format(timeLayout), message)
}

// Writer returns an *os.File opened for appending to path, for a
// concurrent consumer (the supervisor) to stream a child's merged
// stdout/stderr into, between the header and footer. The caller owns
// closing it.
func Writer(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Follow tails path, sending newly appended bytes to the returned channel
// until stop is closed. Modeled on the teacher's outputWatcher in
// pkg/lib/job.go, which uses fsnotify to wake a blocked reader instead of
// polling.
func Follow(path string, stop <-chan struct{}) (<-chan []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		f.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer watcher.Close()
		defer f.Close()

		buf := make([]byte, 4096)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-stop:
					return
				}
			}
			if err != nil {
				select {
				case <-watcher.Events:
				case <-watcher.Errors:
					return
				case <-stop:
					return
				}
				continue
			}
		}
	}()

	return out, nil
}
