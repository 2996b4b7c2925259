// Package audit records state-changing requests. Entries are handed to a
// buffered channel and written to the configured sinks by a single worker,
// so recording never blocks a request.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/assettrack/internal/metrics"
	"github.com/erazemk/assettrack/internal/model"
)

// DefaultBuffer is the number of entries held before new ones are dropped.
const DefaultBuffer = 256

const sinkTimeout = 5 * time.Second

// Sink persists or forwards audit entries.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry *model.AuditLog) error
}

// Recorder delivers audit entries to its sinks in the background. A nil
// *Recorder discards everything.
type Recorder struct {
	sinks   []Sink
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	entries chan *model.AuditLog
	done    chan struct{}
}

// NewRecorder starts the worker. Sinks are written in order, so the store
// sink should come first to assign entry IDs.
func NewRecorder(buffer int, m *metrics.Metrics, sinks ...Sink) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		sinks:   sinks,
		metrics: m,
		entries: make(chan *model.AuditLog, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues an entry. When the buffer is full the entry is dropped and
// counted.
func (r *Recorder) Record(entry *model.AuditLog) {
	if r == nil || entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.metrics.AuditDropped()
		slog.Warn("audit buffer full, entry dropped",
			"action", entry.Action, "entity", entry.EntityType, "entityId", entry.EntityID)
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		for _, sink := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			err := sink.Write(ctx, entry)
			cancel()
			if err != nil {
				r.metrics.AuditSinkFailed(sink.Name())
				slog.Error("writing audit entry", "sink", sink.Name(), "action", entry.Action,
					"entity", entry.EntityType, "error", err)
			}
		}
	}
}
