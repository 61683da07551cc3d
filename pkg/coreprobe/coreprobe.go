// Package coreprobe reports the core count the scheduler uses as its core
// budget. The count is the logical CPU count; physical and hyperthreaded
// cores are not told apart. It is queried at daemon startup.
package coreprobe

import "runtime"

// TotalCores returns the total number of logical CPUs visible to the
// process. The scheduler treats this as its fixed core budget for the
// lifetime of the run.
//
// TODO: distinguish physical from logical (hyperthreaded) cores; runtime
// only exposes the logical count.
func TotalCores() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
