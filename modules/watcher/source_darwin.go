//go:build darwin

package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsevents"
	"github.com/rs/zerolog"
)

// sourceLatency is how long FSEvents may coalesce changes before delivering
// a batch.
const sourceLatency = 10 * time.Millisecond

var nativeFlags = map[fsevents.EventFlags]uint64{
	fsevents.ItemCreated:      ItemCreated,
	fsevents.ItemRemoved:      ItemRemoved,
	fsevents.ItemModified:     ItemModified,
	fsevents.ItemRenamed:      ItemRenamed,
	fsevents.ItemInodeMetaMod: ItemInodeMetaMod,
	fsevents.ItemXattrMod:     ItemXattrMod,
	fsevents.ItemChangeOwner:  ItemChangeOwner,
	fsevents.ItemIsDir:        ItemIsDir,
	fsevents.RootChanged:      RootChanged,
}

// fseventsSource adapts a macOS FSEvents stream into raw notification
// batches. The stream watches recursively no matter what; a non-recursive
// watch is narrowed by the interpreter afterwards.
type fseventsSource struct {
	stream *fsevents.EventStream
	logger zerolog.Logger
	done   chan struct{}
}

func newSource(root string, _ bool, logger zerolog.Logger) (Source, error) {
	dev, err := fsevents.DeviceForPath(root)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve device for path: %w", err)
	}

	return &fseventsSource{
		stream: &fsevents.EventStream{
			Paths:   []string{root},
			Latency: sourceLatency,
			Device:  dev,
			Flags:   fsevents.FileEvents | fsevents.WatchRoot,
		},
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

func (s *fseventsSource) Start(callback func([]Notification)) error {
	s.stream.Start()

	go func() {
		for {
			select {
			case events, ok := <-s.stream.Events:
				if !ok {
					return
				}
				callback(s.convert(events))
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

func (s *fseventsSource) Stop() error {
	s.stream.Stop()
	close(s.done)

	return nil
}

func (s *fseventsSource) convert(events []fsevents.Event) []Notification {
	batch := make([]Notification, 0, len(events))

	for _, event := range events {
		// Paths come back relative to the device root.
		path := event.Path
		if !filepath.IsAbs(path) {
			path = "/" + path
		}

		// The binding does not expose the native inode field, so resolve it
		// by stat. 0 means the item is already gone, which the interpreter
		// treats the same way a failed stat does.
		var ino uint64
		if i, err := inodeOf(path); err == nil {
			ino = i
		}

		var mask uint64
		for native, flag := range nativeFlags {
			if event.Flags&native != 0 {
				mask |= flag
			}
		}

		batch = append(batch, Notification{
			Path:  path,
			Inode: ino,
			Mask:  mask,
			ID:    event.ID,
		})
	}

	return batch
}
