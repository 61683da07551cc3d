//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// applyProcessControls mirrors spec.md's show_console_window setting on
// the one platform where it is meaningful. Priority elevation is applied
// separately, once the process exists, by elevatePriority.
func applyProcessControls(cmd *exec.Cmd, showConsole bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    !showConsole,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// elevatePriority raises pid to the HIGH_PRIORITY_CLASS, the single
// "Elevated" priority hint spec.md §4.5 calls for ("Starting a job").
// Errors are swallowed: without sufficient privilege, Windows denies the
// priority-class change and the job simply runs at its normal priority.
func elevatePriority(pid int) {
	h, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(h)
	_ = windows.SetPriorityClass(h, windows.HIGH_PRIORITY_CLASS)
}
