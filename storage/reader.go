package storage

import (
	"errors"
	"os"

	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/metrics"
)

// Batch is one stored batch loaded for upload. Body is the sealed payload
// (prefix + events + suffix) ready for transmission; Events are the decoded
// blobs for callers that need them.
//
// Exactly one of Confirm or Discard must be called once the caller has
// resolved the batch's fate.
type Batch struct {
	// Name identifies the underlying batch file.
	Name string
	// Body is the complete encoded payload.
	Body []byte
	// Events are the decoded event blobs.
	Events [][]byte

	reader *Reader
	file   *File
}

// Confirm deletes the underlying file. Called after the batch was
// delivered, or when the batch is not worth retrying.
func (b *Batch) Confirm() error {
	if err := b.reader.orchestrator.Delete(b.file); err != nil {
		return err
	}
	return b.reader.orchestrator.PurgeExcess()
}

// Discard leaves the file on disk for a later cycle.
func (b *Batch) Discard() {}

// Reader retrieves the next eligible stored batch. Calls run on the
// feature's upload goroutine; Reader is not safe for concurrent use.
type Reader struct {
	orchestrator *Orchestrator
	format       format.Format
	logger       *log.Logger
	collector    *metrics.Collector
}

// NewReader creates a reader over the given orchestrator.
func NewReader(o *Orchestrator, f format.Format, logger *log.Logger, collector *metrics.Collector) *Reader {
	return &Reader{orchestrator: o, format: f, logger: logger, collector: collector}
}

// ReadNextBatch loads and decodes the oldest read-eligible file.
//
// Returns ErrNoFile when nothing is eligible. A file that fails to decode is
// corrupt: it is deleted immediately (corruption is not retryable) and the
// reader moves on to the next file, so one bad batch cannot wedge the
// pipeline.
func (r *Reader) ReadNextBatch() (*Batch, error) {
	for {
		file, err := r.orchestrator.FileForReading()
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(file.Path())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Purged between selection and read; try the next file.
				continue
			}
			return nil, wrapError("read", file.Path(), err)
		}

		events, err := r.format.Decode(data)
		if err != nil || len(events) == 0 {
			r.collector.IncBatchesCorrupt()
			r.logger.Warn("corrupt batch file deleted", map[string]any{
				"name": file.Name(), "size": len(data),
			})
			if derr := r.orchestrator.Delete(file); derr != nil {
				return nil, derr
			}
			continue
		}

		body := data
		if suffix := r.format.SealChunk(); len(suffix) > 0 {
			body = append(append(make([]byte, 0, len(data)+len(suffix)), data...), suffix...)
		}
		return &Batch{
			Name:   file.Name(),
			Body:   body,
			Events: events,
			reader: r,
			file:   file,
		}, nil
	}
}
