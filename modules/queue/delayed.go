// Package queue provides a FIFO queue whose items can be inserted with a
// mandatory settling delay and retracted by predicate while still queued.
package queue

import (
	"sync"
	"time"
)

type item[T any] struct {
	value      T
	insertedAt time.Time
	delayed    bool
	seq        uint64
}

// Delayed is a concurrent FIFO. Items inserted with delay become retrievable
// through Take only once the configured delay has elapsed since insertion;
// Find and Remove ignore the delay and observe the full queue in insertion
// order.
type Delayed[T any] struct {
	delay    time.Duration
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []item[T]
	nextSeq  uint64
	closed   bool
}

// NewDelayed creates a queue whose delayed items settle for delay before
// becoming retrievable.
func NewDelayed[T any](delay time.Duration) *Delayed[T] {
	q := &Delayed[T]{
		delay: delay,
	}
	q.notEmpty = sync.NewCond(&q.mu)

	return q
}

// Put appends v to the tail. It never blocks. Put must not be called after
// Close.
func (q *Delayed[T]) Put(v T, delayed bool) {
	q.mu.Lock()
	q.items = append(q.items, item[T]{
		value:      v,
		insertedAt: time.Now(),
		delayed:    delayed,
		seq:        q.nextSeq,
	})
	q.nextSeq++
	q.notEmpty.Signal()
	q.mu.Unlock()
}

// Close makes all blocked and future Take calls return immediately with
// ok == false.
func (q *Delayed[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}

// Take removes and returns the head item, blocking until one is available.
// If the head was inserted with delay, Take sleeps until the delay has
// elapsed relative to the insertion time, then re-checks the head: if it was
// removed in the meantime retrieval restarts from the new head. Once the
// queue is closed Take returns the zero value and false; closing discards
// undelivered items for blocked takers, so a taker that was waiting out a
// delay returns false even when its head is still queued.
func (q *Delayed[T]) Take() (T, bool) {
	var zero T

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.notEmpty.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return zero, false
		}
		head := q.items[0]
		q.mu.Unlock()

		// The delay is wall-clock-relative to insertion, so sleeping is done
		// outside the critical section and re-checked after waking.
		if head.delayed {
			for {
				left := time.Until(head.insertedAt.Add(q.delay))
				if left <= 0 {
					break
				}
				time.Sleep(left)
			}
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, false
		}
		if len(q.items) > 0 && q.items[0].seq == head.seq {
			q.items = q.items[1:]
			q.mu.Unlock()
			return head.value, true
		}
		// Head changed while waiting, start over.
		q.mu.Unlock()
	}
}

// Find returns the first queued item for which pred is true, ignoring delay.
func (q *Delayed[T]) Find(pred func(T) bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if pred(it.value) {
			return it.value, true
		}
	}

	var zero T
	return zero, false
}

// Remove removes and returns the first queued item for which pred is true,
// ignoring delay. A concurrent Take waiting on the removed head observes the
// removal and restarts from the new head.
func (q *Delayed[T]) Remove(pred func(T) bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if pred(it.value) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return it.value, true
		}
	}

	var zero T
	return zero, false
}

// Len returns the number of queued, not yet delivered items.
func (q *Delayed[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
