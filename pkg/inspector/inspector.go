// Package inspector implements required-core detection for batch scripts.
// RequiredCores is a pure function: it never mutates, and it never returns
// an error the caller is expected to act on beyond the documented
// fall-back of 1.
package inspector

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// coreFlagPattern matches "-np 4", "-n=4", "-np4", etc. on a single line.
var coreFlagPattern = regexp.MustCompile(`-np?\s*=?\s*(\d+)`)

// subdomainsPattern matches "numberOfSubdomains   8;" in a decomposeParDict.
var subdomainsPattern = regexp.MustCompile(`numberOfSubdomains\s+(\d+)\s*;`)

const maxDictAncestors = 5

// RequiredCores derives the number of cores a script declares it needs.
//
// It scans non-comment lines of the script for the largest -np/-n core
// count, then walks up to maxDictAncestors parent directories looking for
// a system/decomposeParDict file and takes the max of both counts. On any
// read failure it returns 1, never an error that would block scheduling.
func RequiredCores(path string) int {
	derived := 1

	if n := scanScript(path); n > derived {
		derived = n
	}
	if n := scanDecomposeParDict(filepath.Dir(path)); n > derived {
		derived = n
	}

	if derived < 1 {
		return 1
	}
	return derived
}

func scanScript(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	best := 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if isCommentLine(line) {
			continue
		}
		for _, m := range coreFlagPattern.FindAllStringSubmatch(line, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > best {
				best = n
			}
		}
	}
	return best
}

// isCommentLine reports whether the line's first non-whitespace token
// starts with REM (case-insensitive) or ::, the two comment markers used
// by the .bat dialect these scripts are written in.
func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "REM") || strings.HasPrefix(trimmed, "::")
}

// scanDecomposeParDict walks up to maxDictAncestors directories from dir
// looking for system/decomposeParDict, returning the declared
// numberOfSubdomains, or 0 if none is found or it cannot be parsed.
func scanDecomposeParDict(dir string) int {
	cur := dir
	for i := 0; i <= maxDictAncestors; i++ {
		candidate := filepath.Join(cur, "system", "decomposeParDict")
		if data, err := os.ReadFile(candidate); err == nil {
			if m := subdomainsPattern.FindSubmatch(data); m != nil {
				if n, err := strconv.Atoi(string(m[1])); err == nil {
					return n
				}
			}
			return 0
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return 0
}
