//go:build unix

package jobs

import (
	"errors"
	"syscall"
)

// processAlive reports whether pid names a running process.
// Tests replace it.
var processAlive = func(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
