package watcher

// Source is a native OS event source delivering raw notification batches.
type Source interface {
	// Start begins delivery. The callback is invoked from a dedicated
	// dispatch goroutine, one batch at a time, until Stop is called.
	Start(callback func([]Notification)) error

	// Stop ends delivery and unblocks the dispatch goroutine. No callback is
	// invoked after Stop returns.
	Stop() error
}
