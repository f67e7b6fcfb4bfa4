package watcher

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// Snapshot is a point-in-time map of a directory tree to inode numbers. It is
// used to suppress historic created notifications that the native source
// replays for items which already existed before monitoring started.
type Snapshot struct {
	inodes map[string]uint64
}

// TakeSnapshot records the inode of every item under root, root included.
func TakeSnapshot(root string) (*Snapshot, error) {
	inodes := make(map[string]uint64)

	err := filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		ino, err := inodeOf(path)
		if err != nil {
			// Item vanished mid-walk
			return nil
		}

		inodes[path] = ino
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", root, err)
	}

	return &Snapshot{inodes: inodes}, nil
}

// InodeOf returns the inode recorded for path. ok is false if the path was
// not present when the snapshot was taken.
func (s *Snapshot) InodeOf(path string) (uint64, bool) {
	ino, ok := s.inodes[path]
	return ino, ok
}

// Len returns the number of recorded items.
func (s *Snapshot) Len() int {
	return len(s.inodes)
}
