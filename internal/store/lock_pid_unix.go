//go:build !windows

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Signal 0 probes for existence without delivering anything. EPERM means the
// process exists but belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
