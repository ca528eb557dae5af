//go:build !unix

package jobs

import "os"

// processAlive reports whether pid names a running process.
// Tests replace it.
var processAlive = func(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}
