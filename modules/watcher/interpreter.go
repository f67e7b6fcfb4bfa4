package watcher

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/Leantar/pathwatch/modules/patterns"
	"github.com/rs/zerolog"
)

// historyWindow is how long the native source may replay events from before
// the watch started. The pre-start snapshot is discarded afterwards to free
// the memory.
const historyWindow = 60 * time.Second

type statFunc func(path string) (uint64, error)

// Interpreter reconciles batches of raw native notifications into semantic
// events for a single watched root. A batch is processed under one mutex, so
// reconciliation is single-threaded even when the native runtime dispatches
// callbacks concurrently.
type Interpreter struct {
	root      string
	recursive bool
	filter    *patterns.Filter
	kinds     map[string]struct{}
	emit      func(Event)
	onStop    func()
	logger    zerolog.Logger

	mu       sync.Mutex
	known    map[uint64]struct{}
	snapshot *Snapshot
	started  time.Time
	stopped  bool
	stat     statFunc
}

func newInterpreter(conf Config, filter *patterns.Filter, snapshot *Snapshot, emit func(Event), onStop func(), logger zerolog.Logger) *Interpreter {
	kinds := make(map[string]struct{}, len(conf.Kinds))
	for _, kind := range conf.Kinds {
		kinds[kind] = struct{}{}
	}

	return &Interpreter{
		root:      conf.Path,
		recursive: conf.Recursive,
		filter:    filter,
		kinds:     kinds,
		emit:      emit,
		onStop:    onStop,
		logger:    logger,
		known:     make(map[uint64]struct{}),
		snapshot:  snapshot,
		started:   time.Now(),
		stat:      inodeOf,
	}
}

// ProcessBatch consumes one batch of native notifications in order. A panic
// while interpreting is logged and must not kill the watch; the next batch is
// processed normally.
func (ip *Interpreter) ProcessBatch(batch []Notification) {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			ip.logger.Error().Interface("panic", r).Msg("unhandled panic while interpreting batch")
		}
	}()

	if ip.stopped {
		return
	}

	if ip.snapshot != nil && time.Since(ip.started) > historyWindow {
		// Event history is no longer replayed, free the memory.
		ip.snapshot = nil
	}

	// Own the batch. Pairing a rename consumes its destination entry, so
	// later lookups must only see the remaining entries.
	pending := make([]Notification, len(batch))
	copy(pending, batch)

	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]

		srcPath := n.Path
		srcDir := filepath.Dir(srcPath)

		// The path only still refers to this item if the stat succeeds and
		// the inode matches. A failed stat is not an error, it just means the
		// item no longer exists.
		ino, err := ip.stat(srcPath)
		exists := err == nil && ino == n.Inode

		if n.Has(ItemCreated) && n.Has(ItemRemoved) {
			// Coalesced full lifecycle. Flags are only coalesced for the same
			// item and path, so deleted -> created cannot occur here and
			// neither can any combination with renamed.
			if !ip.isHistoricCreated(n) {
				ip.emitCreated(n, srcPath, srcDir)
			}
			ip.addKnown(n.Inode)

			if n.Has(ItemModified) || n.isMetaMod() {
				ip.emitModified(n, srcPath)
			}

			ip.emitDeleted(n, srcPath, srcDir)
			delete(ip.known, n.Inode)
		} else {
			if n.Has(ItemCreated) && !ip.isHistoricCreated(n) {
				ip.emitCreated(n, srcPath, srcDir)
			}
			ip.addKnown(n.Inode)

			if n.Has(ItemModified) || n.isMetaMod() {
				ip.emitModified(n, srcPath)
			}

			if n.Has(ItemRenamed) {
				// An unresolved inode identifies nothing, so it can never
				// pair two notifications into a move.
				dstIdx := -1
				if n.Inode != 0 {
					for i, e := range pending {
						if e.Has(ItemRenamed) && e.Inode == n.Inode {
							dstIdx = i
							break
						}
					}
				}

				if dstIdx >= 0 {
					// Item was moved within the watched tree.
					dst := pending[dstIdx]
					dstPath := dst.Path
					dstDir := filepath.Dir(dstPath)

					ip.emitMoved(n, srcPath, dstPath, srcDir, dstDir)
					ip.addKnown(n.Inode)

					if ip.recursive {
						for _, sub := range subMovedEvents(srcPath, dstPath) {
							ip.queueEvent(sub)
						}
					}

					// Consume the paired half and apply its coalesced flags.
					pending = append(pending[:dstIdx], pending[dstIdx+1:]...)

					if dst.Has(ItemModified) || dst.isMetaMod() {
						ip.emitModified(dst, dstPath)
					}

					if dst.Has(ItemRemoved) {
						ip.emitDeleted(dst, dstPath, dstDir)
						delete(ip.known, dst.Inode)
					}
				} else if exists {
					// Arrival half of a move from outside the watched tree.
					ip.emitCreated(n, srcPath, srcDir)
					ip.addKnown(n.Inode)

					if ip.recursive {
						for _, sub := range subCreatedEvents(srcPath) {
							ip.queueEvent(sub)
						}
					}
				} else {
					// Departure half of a move to outside the watched tree.
					// Skip any further coalesced processing.
					ip.emitDeleted(n, srcPath, srcDir)
					delete(ip.known, n.Inode)
					continue
				}
			}

			if n.Has(ItemRemoved) {
				// Never coalesced together with renamed.
				ip.emitDeleted(n, srcPath, srcDir)
				delete(ip.known, n.Inode)
			}
		}

		if n.Has(RootChanged) {
			// The root itself or one of its ancestors was renamed or deleted
			// out from under the watch. Report the root as gone and stop.
			ip.queueEvent(Event{Kind: KindDelete, Path: ip.root, IsDir: true})
			ip.known = make(map[uint64]struct{})
			ip.logger.Debug().Msg("stopping because root path was changed")
			ip.stopLocked()
			return
		}
	}
}

// markStopped prevents any further batch from being interpreted. It waits for
// an in-flight batch to finish.
func (ip *Interpreter) markStopped() {
	ip.mu.Lock()
	ip.stopped = true
	ip.mu.Unlock()
}

func (ip *Interpreter) stopLocked() {
	ip.stopped = true
	if ip.onStop != nil {
		ip.onStop()
	}
}

// addKnown records an inode as already reported. 0 means the source could
// not resolve the inode; it identifies nothing and is never tracked.
func (ip *Interpreter) addKnown(ino uint64) {
	if ino != 0 {
		ip.known[ino] = struct{}{}
	}
}

// isHistoricCreated reports whether a created flag on this notification is
// spurious: either the inode was already reported as created, or the
// pre-start snapshot shows the same item already existed at this path before
// monitoring began. An unresolved inode carries no identity and is never
// historic.
func (ip *Interpreter) isHistoricCreated(n Notification) bool {
	if n.Inode == 0 {
		return false
	}

	if _, ok := ip.known[n.Inode]; ok {
		return true
	}

	if ip.snapshot != nil {
		if ino, ok := ip.snapshot.InodeOf(n.Path); ok && ino == n.Inode {
			return true
		}
	}

	return false
}

func (ip *Interpreter) emitCreated(n Notification, path, dir string) {
	ip.queueEvent(Event{Kind: KindCreate, Path: path, IsDir: n.Has(ItemIsDir)})
	ip.queueEvent(Event{Kind: KindChange, Path: dir, IsDir: true})
}

func (ip *Interpreter) emitDeleted(n Notification, path, dir string) {
	ip.queueEvent(Event{Kind: KindDelete, Path: path, IsDir: n.Has(ItemIsDir)})
	ip.queueEvent(Event{Kind: KindChange, Path: dir, IsDir: true})
}

func (ip *Interpreter) emitModified(n Notification, path string) {
	ip.queueEvent(Event{Kind: KindChange, Path: path, IsDir: n.Has(ItemIsDir)})
}

func (ip *Interpreter) emitMoved(n Notification, src, dst, srcDir, dstDir string) {
	ip.queueEvent(Event{Kind: KindMove, Path: src, DestPath: dst, IsDir: n.Has(ItemIsDir)})
	ip.queueEvent(Event{Kind: KindChange, Path: srcDir, IsDir: true})
	ip.queueEvent(Event{Kind: KindChange, Path: dstDir, IsDir: true})
}

// queueEvent applies the kind filter, the pattern filter and the
// non-recursive scope filter, then hands the event to the sink.
func (ip *Interpreter) queueEvent(e Event) {
	if len(ip.kinds) > 0 {
		if _, ok := ip.kinds[e.Kind]; !ok {
			return
		}
	}

	if ip.filter != nil && !ip.inScope(e) {
		return
	}

	// The native source is recursive by construction, so a non-recursive
	// watch drops everything below the first level here. A move is kept if
	// either endpoint sits directly in the root, otherwise items crossing the
	// watch boundary would vanish silently.
	if !ip.recursive && ip.isRecursiveEvent(e) {
		ip.logger.Debug().Str("kind", e.Kind).Str("path", e.Path).Msg("drop event")
		return
	}

	ip.logger.Debug().Str("kind", e.Kind).Str("path", e.Path).Msg("queue event")
	ip.emit(e)
}

func (ip *Interpreter) inScope(e Event) bool {
	if ip.filter.Matches(e.Path) {
		return true
	}

	return e.Kind == KindMove && ip.filter.Matches(e.DestPath)
}

func (ip *Interpreter) isRecursiveEvent(e Event) bool {
	if e.Path == ip.root || filepath.Dir(e.Path) == ip.root {
		return false
	}

	if e.Kind == KindMove && filepath.Dir(e.DestPath) == ip.root {
		return false
	}

	return true
}

// subMovedEvents synthesizes moved events for every item found under the
// destination of a directory move, mapping each back to its old path.
func subMovedEvents(src, dst string) []Event {
	var events []Event

	_ = filepath.WalkDir(dst, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || path == dst {
			return nil
		}

		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return nil
		}

		events = append(events, Event{
			Kind:     KindMove,
			Path:     filepath.Join(src, rel),
			DestPath: path,
			IsDir:    entry.IsDir(),
		})
		return nil
	})

	return events
}

// subCreatedEvents synthesizes created events for every item found under a
// directory that arrived in the watched tree as a unit.
func subCreatedEvents(root string) []Event {
	var events []Event

	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}

		events = append(events, Event{
			Kind:  KindCreate,
			Path:  path,
			IsDir: entry.IsDir(),
		})
		return nil
	})

	return events
}
