//go:build !darwin

package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// fsnotifySource is the portable fallback for platforms without FSEvents. It
// adapts fsnotify's per-item notifications into single-entry batches. Rename
// halves are rarely delivered in one batch here, so cross-directory moves
// usually surface as separate delete and create events.
type fsnotifySource struct {
	watcher   *fsnotify.Watcher
	root      string
	recursive bool
	logger    zerolog.Logger
	done      chan struct{}
	seq       uint64
}

func newSource(root string, recursive bool, logger zerolog.Logger) (Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize watcher: %w", err)
	}

	return &fsnotifySource{
		watcher:   w,
		root:      root,
		recursive: recursive,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

func (s *fsnotifySource) Start(callback func([]Notification)) error {
	err := s.addWatches()
	if err != nil {
		return fmt.Errorf("failed to add watches: %w", err)
	}

	go s.dispatch(callback)

	return nil
}

func (s *fsnotifySource) Stop() error {
	close(s.done)

	return s.watcher.Close()
}

func (s *fsnotifySource) addWatches() error {
	if !s.recursive {
		return s.watcher.Add(s.root)
	}

	return filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}

		return s.watcher.Add(path)
	})
}

func (s *fsnotifySource) dispatch(callback func([]Notification)) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			n := s.convert(event)
			if n.Mask == 0 {
				continue
			}

			// New directories must be registered before their contents start
			// changing, or events below them are lost.
			if s.recursive && n.Has(ItemCreated) && n.Has(ItemIsDir) {
				if err := s.watcher.Add(event.Name); err != nil {
					s.logger.Error().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
			}

			callback([]Notification{n})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("native source error")
		case <-s.done:
			return
		}
	}
}

func (s *fsnotifySource) convert(event fsnotify.Event) Notification {
	var mask uint64

	if event.Has(fsnotify.Create) {
		mask |= ItemCreated
	}
	if event.Has(fsnotify.Remove) {
		mask |= ItemRemoved
	}
	if event.Has(fsnotify.Write) {
		mask |= ItemModified
	}
	if event.Has(fsnotify.Chmod) {
		mask |= ItemInodeMetaMod
	}
	if event.Has(fsnotify.Rename) {
		mask |= ItemRenamed
	}

	if event.Name == s.root && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		mask = RootChanged | ItemIsDir
	}

	var ino uint64
	if i, err := inodeOf(event.Name); err == nil {
		ino = i

		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			mask |= ItemIsDir
		}
	}

	s.seq++
	return Notification{
		Path:  event.Name,
		Inode: ino,
		Mask:  mask,
		ID:    s.seq,
	}
}
