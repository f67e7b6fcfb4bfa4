package watcher

import (
	"testing"
	"time"

	"github.com/Leantar/pathwatch/modules/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_AtomicReplace(t *testing.T) {
	q := queue.NewDelayed[Event](200 * time.Millisecond)
	out := make(chan Event, 16)
	d := &debouncer{queue: q, out: out}
	go d.run()
	defer q.Close()

	// create -> delete -> create in rapid succession is an in-place replace,
	// not a real deletion.
	d.enqueue(Event{Kind: KindCreate, Path: "/w/a"})
	d.enqueue(Event{Kind: KindDelete, Path: "/w/a"})
	d.enqueue(Event{Kind: KindCreate, Path: "/w/a"})

	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-out:
			got = append(got, e)
		case <-timeout:
			t.Fatal("timeout waiting for events")
		}
	}

	assert.Equal(t, []Event{
		{Kind: KindCreate, Path: "/w/a"},
		{Kind: KindChange, Path: "/w/a"},
	}, got)

	select {
	case e := <-out:
		t.Fatalf("unexpected extra event: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDebouncer_DeleteSettles(t *testing.T) {
	const delay = 100 * time.Millisecond

	q := queue.NewDelayed[Event](delay)
	out := make(chan Event, 16)
	d := &debouncer{queue: q, out: out}
	go d.run()
	defer q.Close()

	start := time.Now()
	d.enqueue(Event{Kind: KindDelete, Path: "/w/a"})

	select {
	case e := <-out:
		require.Equal(t, KindDelete, e.Kind)
		assert.GreaterOrEqual(t, time.Since(start), delay)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delete")
	}
}

func TestDebouncer_CloseClosesOutput(t *testing.T) {
	q := queue.NewDelayed[Event](time.Millisecond)
	out := make(chan Event)
	d := &debouncer{queue: q, out: out}
	go d.run()

	q.Close()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
}
