package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Leantar/pathwatch/modules/patterns"
	"github.com/Leantar/pathwatch/modules/queue"
	"github.com/rs/zerolog"
)

// Config describes a single watched root.
type Config struct {
	Path            string   `yaml:"path"`
	Recursive       bool     `yaml:"recursive"`
	Include         []string `yaml:"include"`
	Exclude         []string `yaml:"exclude"`
	CaseInsensitive bool     `yaml:"case_insensitive"`
	Kinds           []string `yaml:"kinds"`
	SuppressHistory bool     `yaml:"suppress_history"`
	DelaySeconds    float64  `yaml:"delay_seconds"`
}

// Watch monitors a single root and delivers semantic events on Events.
// Watches for different roots are fully independent.
type Watch struct {
	conf     Config
	source   Source
	interp   *Interpreter
	events   chan Event
	queue    *queue.Delayed[Event]
	logger   zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watch for conf.Path. When conf.SuppressHistory is set, a
// snapshot of the tree is taken before the native source starts so that
// replayed historic created notifications can be told apart from real ones.
func New(conf Config, logger zerolog.Logger) (*Watch, error) {
	ap, err := filepath.Abs(conf.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	conf.Path = ap

	filter, err := patterns.New(conf.Include, conf.Exclude, !conf.CaseInsensitive)
	if err != nil {
		return nil, err
	}

	var snapshot *Snapshot
	if conf.SuppressHistory {
		snapshot, err = TakeSnapshot(ap)
		if err != nil {
			return nil, err
		}
	}

	w := &Watch{
		conf:   conf,
		events: make(chan Event, 64),
		logger: logger.With().Str("root", ap).Logger(),
		done:   make(chan struct{}),
	}

	w.source, err = newSource(ap, conf.Recursive, w.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create native source: %w", err)
	}

	emit := w.deliver
	if conf.DelaySeconds > 0 {
		w.queue = queue.NewDelayed[Event](time.Duration(conf.DelaySeconds * float64(time.Second)))
		d := &debouncer{queue: w.queue, out: w.events}
		emit = d.enqueue
		go d.run()
	}

	w.interp = newInterpreter(conf, filter, snapshot, emit, w.requestStop, w.logger)

	return w, nil
}

// Start begins delivery of events. It does not block.
func (w *Watch) Start() error {
	err := w.source.Start(w.interp.ProcessBatch)
	if err != nil {
		return fmt.Errorf("failed to start native source: %w", err)
	}

	return nil
}

// Events returns the delivery channel. It is closed when the watch stops.
// Consumers pull events and are responsible for their own backpressure.
func (w *Watch) Events() <-chan Event {
	return w.events
}

// Close stops the native source, prevents further reconciliation and closes
// the delivery channel. It is safe to call more than once.
func (w *Watch) Close() error {
	var err error

	w.stopOnce.Do(func() {
		// Unblock a delivery that is still waiting on a consumer, then wait
		// for the in-flight batch, so no event is delivered after the
		// channel closes below.
		close(w.done)
		w.interp.markStopped()

		err = w.source.Stop()

		if w.queue != nil {
			w.queue.Close()
		} else {
			close(w.events)
		}
	})

	return err
}

func (w *Watch) deliver(e Event) {
	select {
	case w.events <- e:
	case <-w.done:
	}
}

// requestStop is invoked by the interpreter while it holds its own lock, so
// the teardown has to happen on a separate goroutine.
func (w *Watch) requestStop() {
	go func() {
		if err := w.Close(); err != nil {
			w.logger.Error().Err(err).Msg("failed to stop watch")
		}
	}()
}
