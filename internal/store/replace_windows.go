//go:build windows

package store

import "golang.org/x/sys/windows"

// replaceFile uses MoveFileEx so an existing evidence or report file is
// replaced in one step and the move is flushed before returning.
func replaceFile(tmpPath, finalPath string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(finalPath)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}
