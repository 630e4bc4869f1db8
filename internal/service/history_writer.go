package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
	"github.com/Sentinel-Gate/duovisor/internal/port/outbound"
)

const (
	// recordTimeout bounds a single history write.
	recordTimeout = 500 * time.Millisecond

	// historyQueueSize is the number of entries that may wait for the writer.
	// A run produces a dozen or so, so the queue only fills when the
	// database is stuck.
	historyQueueSize = 64

	// historyFlushTimeout bounds draining the queue when Run returns.
	historyFlushTimeout = time.Second
)

// historyWriter hands history entries to a single background goroutine so
// the run loop never waits on the database.
type historyWriter struct {
	recorder outbound.EventRecorder
	logger   *slog.Logger

	entries chan supervisor.HistoryEntry
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func newHistoryWriter(recorder outbound.EventRecorder, logger *slog.Logger) *historyWriter {
	ctx, cancel := context.WithCancel(context.Background())
	w := &historyWriter{
		recorder: recorder,
		logger:   logger,
		entries:  make(chan supervisor.HistoryEntry, historyQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *historyWriter) run() {
	defer close(w.done)
	dropped := 0
	for e := range w.entries {
		if w.ctx.Err() != nil {
			dropped++
			continue
		}
		ctx, cancel := context.WithTimeout(w.ctx, recordTimeout)
		if err := w.recorder.Record(ctx, e); err != nil {
			w.logger.Warn("failed to record history", "kind", e.Kind, "error", err)
		}
		cancel()
	}
	if dropped > 0 {
		w.logger.Warn("history flush timed out, events dropped", "dropped", dropped)
	}
}

// enqueue never blocks. Entries are dropped while the queue is full.
func (w *historyWriter) enqueue(e supervisor.HistoryEntry) {
	select {
	case w.entries <- e:
	default:
		w.logger.Warn("history queue full, dropping event", "kind", e.Kind)
	}
}

// close stops accepting entries and waits up to timeout for queued ones to
// be written. Writes still pending at the deadline are canceled.
func (w *historyWriter) close(timeout time.Duration) {
	close(w.entries)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
	case <-t.C:
		w.cancel()
		<-w.done
	}
	w.cancel()
}
