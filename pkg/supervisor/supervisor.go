// Package supervisor launches a single job's child process, streams its
// output into a log, waits for the root process to exit, then waits for
// its descendants to drain before reporting completion. It is the only
// party that holds the OS process handle; it never mutates job fields
// itself (spec.md §4.6) — completion is reported as a message sent to a
// channel owned by the scheduler, following the design note in spec.md §9
// ("fire-and-forget asynchronous waiters ... send a completion message to
// the scheduler's command channel; never touch scheduler state from the
// task").
//
// The launch mechanism is adapted from the teacher library's re-exec
// pattern (pkg/lib/job.go): rather than namespacing a container rootfs,
// the re-exec handler here runs the job's shell command directly, with
// its own process group so the whole tree can be addressed for
// cancellation.
package supervisor

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/docker/docker/pkg/reexec"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logsink"
	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/proctree"
)

const drainPollInterval = 2 * time.Second

func init() {
	reexec.Register("runJob", reExecHandler)
	if reexec.Init() {
		os.Exit(0)
	}
}

// Config describes a single job launch.
type Config struct {
	JobID       string
	Command     string // full shell command line
	WorkDir     string // working directory; falls back to cwd if empty
	LogPath     string
	ShowConsole bool
}

// Completion is the message a Handle's waiter posts once a job and all
// of its descendants have exited.
type Completion struct {
	JobID    string
	ExitCode *int // nil if the exit code could not be retrieved
}

// Handle is the supervisor's live view of a started job. The scheduler
// keeps handles in a job_id -> Handle map so it can route Kill calls.
type Handle struct {
	jobID    string
	cmd      *exec.Cmd
	killOnce sync.Once
}

// Start launches the job described by cfg. On success, the returned
// Handle's root process is running and a background waiter is armed that
// will send exactly one Completion to completions once the job and its
// descendants have fully exited.
func Start(cfg Config, completions chan<- Completion) (*Handle, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}

	logFile, err := logsink.Writer(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	cmd := reexec.Command("runJob", workDir, cfg.Command)
	applyProcessControls(cmd, cfg.ShowConsole)

	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}
	elevatePriority(cmd.Process.Pid)

	h := &Handle{jobID: cfg.JobID, cmd: cmd}

	go h.waiter(logFile, completions)

	return h, nil
}

// Kill force-terminates the job's entire process tree. It is safe to call
// more than once; only the first call has effect. Exit is still reported
// through the normal completion path.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if h.cmd.Process == nil {
			return
		}
		logging.Debugf("supervisor: killing process group for job %s (pid %d)", h.jobID, h.cmd.Process.Pid)
		if err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL); err != nil {
			logging.Debugf("supervisor: failed to kill process group for job %s: %v", h.jobID, err)
		}
	})
}

// waiter blocks until the root process exits, then polls proctree for
// descendant drain before posting a single Completion message.
func (h *Handle) waiter(logFile *os.File, completions chan<- Completion) {
	defer logFile.Close()

	err := h.cmd.Wait()

	var exitCode *int
	if h.cmd.ProcessState != nil {
		code := h.cmd.ProcessState.ExitCode()
		exitCode = &code
	}
	if err != nil && exitCode == nil {
		logging.Debugf("supervisor: job %s exited without a retrievable code: %v", h.jobID, err)
	}

	if h.cmd.Process != nil {
		h.drainDescendants(h.cmd.Process.Pid)
	}

	completions <- Completion{JobID: h.jobID, ExitCode: exitCode}
}

func (h *Handle) drainDescendants(rootPID int) {
	emptyReads := 0
	for {
		if len(proctree.Descendants(rootPID)) == 0 {
			emptyReads++
			// A single empty read counts as drained; there is no
			// debounce across several polls, so a transient /proc read
			// failure also ends the wait.
			if emptyReads >= 1 {
				return
			}
		} else {
			emptyReads = 0
		}
		time.Sleep(drainPollInterval)
	}
}

// reExecHandler is invoked by docker/reexec in a freshly re-executed copy
// of this binary. It runs the job's command through /bin/sh, inheriting
// the parent's stdout/stderr pipes so the outer process can tee the
// merged stream into the job's log file.
func reExecHandler() {
	workDir := os.Args[1]
	command := os.Args[2]

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		if cmd.ProcessState != nil {
			os.Exit(cmd.ProcessState.ExitCode())
		}
		os.Exit(1)
	}
}
