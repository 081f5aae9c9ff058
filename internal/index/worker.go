package index

import (
	"context"
	"log/slog"
	"time"
)

// Saver persists the index in the background. It snapshots on a fixed
// interval, and sooner when the index signals a burst of writes.
type Saver struct {
	index    *Index
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
}

// NewSaver creates a new index save worker
func NewSaver(index *Index, logger *slog.Logger, interval time.Duration) *Saver {
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &Saver{
		index:    index,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the save loop until the context is cancelled or Stop is
// called. A final snapshot is taken on the way out.
func (s *Saver) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("index saver started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.save()
			s.logger.Info("index saver stopped")
			return
		case <-s.done:
			s.save()
			s.logger.Info("index saver stopped")
			return
		case <-s.index.saveSignal:
			s.save()
		case <-ticker.C:
			s.save()
		}
	}
}

// Stop gracefully shuts down the saver
func (s *Saver) Stop() {
	close(s.done)
}

func (s *Saver) save() {
	if !s.index.NeedsSave() {
		return
	}

	start := time.Now()
	if err := s.index.Save(); err != nil {
		s.logger.Error("index save failed", "error", err)
		return
	}
	s.logger.Debug("index saved", "entries", s.index.Size(), "duration", time.Since(start))
}
