package storage

import (
	"fmt"

	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/metrics"
)

// Writer appends produced events to the orchestrator-selected batch file,
// applying the data format. All calls run on the feature's single write
// goroutine; Writer itself is not safe for concurrent use.
//
// Writes never propagate errors to the producer: an event that cannot be
// stored is dropped with a diagnostic. Stale events are not worth
// re-buffering against a live producer.
type Writer struct {
	orchestrator *Orchestrator
	format       format.Format
	maxEventSize int64
	logger       *log.Logger
	collector    *metrics.Collector
}

// NewWriter creates a writer over the given orchestrator.
func NewWriter(o *Orchestrator, f format.Format, logger *log.Logger, collector *metrics.Collector) *Writer {
	return &Writer{
		orchestrator: o,
		format:       f,
		maxEventSize: o.limits.MaxEventSize,
		logger:       logger,
		collector:    collector,
	}
}

// Write appends one serialized event to the current batch file.
// The returned error is diagnostic only; the event is already dropped.
func (w *Writer) Write(event []byte) error {
	if len(event) == 0 {
		return nil
	}
	if w.maxEventSize > 0 && int64(len(event)) > w.maxEventSize {
		w.collector.IncEventsDropped()
		w.logger.Warn("event dropped: exceeds size limit", map[string]any{
			"size": len(event), "limit": w.maxEventSize,
		})
		return fmt.Errorf("write: %w (%d bytes)", ErrEventTooLarge, len(event))
	}

	file, err := w.orchestrator.FileForWriting(int64(len(event)))
	if err != nil {
		w.collector.IncEventsDropped()
		w.logger.Error("event dropped: no writable batch file", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	chunk := w.format.AppendChunk(event, file.Events() == 0)
	if err := file.Append(chunk); err != nil {
		w.collector.IncEventsDropped()
		w.logger.Error("event dropped: append failed", map[string]any{
			"path": file.Path(), "error": err.Error(),
		})
		return err
	}
	w.collector.IncEventsWritten(int64(len(event)))

	if err := w.orchestrator.PurgeExcess(); err != nil {
		w.logger.Warn("purge after write failed", map[string]any{"error": err.Error()})
	}
	return nil
}
