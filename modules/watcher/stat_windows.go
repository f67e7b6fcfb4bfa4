//go:build windows

package watcher

import (
	"fmt"
	"os"
)

// Windows exposes no stable inode through Lstat, so identity checks degrade
// to existence checks.
func inodeOf(path string) (uint64, error) {
	_, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat path: %w", err)
	}

	return 0, nil
}
