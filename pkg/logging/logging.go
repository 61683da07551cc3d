// Package logging provides the verbose debug-logging toggle shared across
// the daemon. It generalizes the teacher library's pkg/lib/log.go pattern
// to every package instead of keeping it private to one.
package logging

import "log"

// Debug enables verbose logging in every package that calls Debugf
// (config, state, logsink, scheduler, supervisor and the daemon). Off by
// default.
var Debug = false

// Debugf logs a message through the standard logger (stderr) if Debug is
// set to true.
func Debugf(format string, v ...interface{}) {
	if Debug {
		log.Printf(format, v...)
	}
}
