//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// applyProcessControls sets up the process-group addressability every
// platform needs for tree cancellation, and is the pre-start hook for
// platform-specific best-effort knobs such as console visibility (spec.md's
// "ProcessControls" design note, §9). Priority elevation is applied
// separately, once the process exists, by elevatePriority. showConsole has
// no meaning outside Windows; it is accepted for signature symmetry and
// ignored here.
func applyProcessControls(cmd *exec.Cmd, showConsole bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// elevatePriority lowers pid's niceness, the unix analogue of Windows'
// "Elevated" priority class (spec.md §4.5 "Starting a job"). Best-effort:
// an unprivileged caller typically can't go below the default niceness,
// so the permission error is swallowed rather than failing the job.
func elevatePriority(pid int) {
	_ = syscall.Setpriority(syscall.PRIO_PROCESS, pid, -5)
}
