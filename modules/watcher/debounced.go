package watcher

import (
	"github.com/Leantar/pathwatch/modules/queue"
)

// debouncer routes events through a delayed queue so that a deletion can be
// retracted while it is still settling. A create arriving for a path whose
// delete is still queued means the item was replaced in place, not removed;
// consumers then see a single change instead of a delete/create pair.
type debouncer struct {
	queue *queue.Delayed[Event]
	out   chan<- Event
}

func (d *debouncer) enqueue(e Event) {
	if e.Kind == KindCreate {
		_, replaced := d.queue.Remove(func(q Event) bool {
			return q.Kind == KindDelete && q.Path == e.Path
		})
		if replaced {
			e.Kind = KindChange
		}
	}

	d.queue.Put(e, e.Kind == KindDelete)
}

func (d *debouncer) run() {
	for {
		e, ok := d.queue.Take()
		if !ok {
			close(d.out)
			return
		}

		d.out <- e
	}
}
