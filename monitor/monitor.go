package monitor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Leantar/pathwatch/modules/watcher"
	"github.com/rs/zerolog"
)

type Config struct {
	Watches []watcher.Config `yaml:"watches"`
}

// Monitor owns the configured watches. Each watch runs fully independently;
// a failing watch never affects the others.
type Monitor struct {
	conf   Config
	logger zerolog.Logger

	mu      sync.Mutex
	watches []*watcher.Watch
	wg      sync.WaitGroup
}

func New(conf Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		conf:   conf,
		logger: logger,
	}
}

// Run starts every configured watch and blocks draining their event channels
// until Stop is called. A watch that cannot be started is logged and skipped.
func (m *Monitor) Run() error {
	started := 0

	for _, wc := range m.conf.Watches {
		w, err := watcher.New(wc, m.logger)
		if err != nil {
			m.logger.Error().Caller().Err(err).Str("path", wc.Path).Msg("failed to create watch")
			continue
		}

		err = w.Start()
		if err != nil {
			m.logger.Error().Caller().Err(err).Str("path", wc.Path).Msg("failed to start watch")
			continue
		}

		m.mu.Lock()
		m.watches = append(m.watches, w)
		m.mu.Unlock()

		m.wg.Add(1)
		go m.drain(w)

		m.logger.Info().Str("path", wc.Path).Bool("recursive", wc.Recursive).Msg("watching")
		started++
	}

	if started == 0 && len(m.conf.Watches) > 0 {
		return errors.New("no watch could be started")
	}

	m.wg.Wait()

	return nil
}

// Stop closes all watches. Run returns once their channels have drained.
func (m *Monitor) Stop() error {
	m.logger.Info().Msg("stopping monitor")

	m.mu.Lock()
	watches := m.watches
	m.mu.Unlock()

	var firstErr error
	for _, w := range watches {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close watch: %w", err)
		}
	}

	m.wg.Wait()

	return firstErr
}

func (m *Monitor) drain(w *watcher.Watch) {
	defer m.wg.Done()

	for event := range w.Events() {
		entry := m.logger.Info().
			Str("kind", event.Kind).
			Str("path", event.Path).
			Bool("is_dir", event.IsDir)

		if event.Kind == watcher.KindMove {
			entry = entry.Str("dest_path", event.DestPath)
		}

		entry.Msg("filesystem event")
	}
}
