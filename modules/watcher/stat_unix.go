//go:build unix

package watcher

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// inodeOf returns the inode of the item at path without following symlinks.
func inodeOf(path string) (uint64, error) {
	var stat unix.Stat_t

	err := unix.Lstat(path, &stat)
	if err != nil {
		return 0, fmt.Errorf("failed to stat path: %w", err)
	}

	return stat.Ino, nil
}
