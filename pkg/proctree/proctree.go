// Package proctree enumerates descendant PIDs of a root process from OS
// state. It snapshots /proc once per call and never shells out, matching
// the teacher pack's hand-rolled process-table walkers rather than a
// heavier dependency like gopsutil (not used anywhere in the retrieved
// example pack).
package proctree

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Descendants returns the set of PIDs transitively descended from root,
// not including root itself. It is robust to a missing or already-exited
// root: such cases simply yield no matches in the snapshot and an empty
// set is returned.
func Descendants(root int) map[int]struct{} {
	children := buildChildrenMap()

	result := make(map[int]struct{})
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if _, seen := result[child]; seen {
				continue
			}
			result[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return result
}

// buildChildrenMap snapshots /proc once and returns a parent PID -> child
// PIDs adjacency map built from each process's /proc/<pid>/stat ppid
// field.
func buildChildrenMap() map[int][]int {
	children := make(map[int][]int)

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return children
	}

	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, ok := readPPID(pid)
		if !ok {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}
	return children
}

// readPPID parses the parent PID out of /proc/<pid>/stat. The comm field
// is parenthesized and may itself contain spaces or parentheses, so the
// format is located by its closing paren rather than naive field
// splitting.
func readPPID(pid int) (int, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}

	line := string(data)
	close := strings.LastIndexByte(line, ')')
	if close < 0 || close+2 >= len(line) {
		return 0, false
	}

	fields := strings.Fields(line[close+2:])
	// fields[0] is state, fields[1] is ppid (stat fields 3 and 4, 1-indexed).
	if len(fields) < 2 {
		return 0, false
	}

	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}
