//go:build !windows

package store

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// replaceFile renames tmpPath over finalPath and fsyncs the parent directory
// so the new entry survives a crash. The directory sync is best effort; some
// filesystems reject fsync on directories.
func replaceFile(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return err
	}
	fd, err := unix.Open(filepath.Dir(finalPath), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil
	}
	_ = unix.Fsync(fd)
	_ = unix.Close(fd)
	return nil
}
