// Package metrics provides per-feature pipeline counters.
//
// The Collector accumulates counters for one feature's pipeline: storage on
// the write side, upload cycles on the read side. It is a leaf package with
// no internal dependencies. All increment methods are nil-receiver safe so
// instrumented code never has to check for a missing collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Write side
	EventsWritten int64 `json:"events_written" yaml:"events_written"`
	BytesWritten  int64 `json:"bytes_written" yaml:"bytes_written"`
	EventsDropped int64 `json:"events_dropped" yaml:"events_dropped"`
	FilesPurged   int64 `json:"files_purged" yaml:"files_purged"`

	// Read / upload side
	BatchesUploaded  int64 `json:"batches_uploaded" yaml:"batches_uploaded"`
	BatchesRejected  int64 `json:"batches_rejected" yaml:"batches_rejected"`
	BatchesRetried   int64 `json:"batches_retried" yaml:"batches_retried"`
	BatchesCorrupt   int64 `json:"batches_corrupt" yaml:"batches_corrupt"`
	CyclesSkipped    int64 `json:"cycles_skipped" yaml:"cycles_skipped"`
	CyclesNoData     int64 `json:"cycles_no_data" yaml:"cycles_no_data"`

	// Dimension, set at construction.
	Feature string `json:"feature" yaml:"feature"`
}

// Collector accumulates counters for one feature.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	eventsWritten int64
	bytesWritten  int64
	eventsDropped int64
	filesPurged   int64

	batchesUploaded int64
	batchesRejected int64
	batchesRetried  int64
	batchesCorrupt  int64
	cyclesSkipped   int64
	cyclesNoData    int64

	feature string
}

// NewCollector creates a Collector labeled with the owning feature.
func NewCollector(feature string) *Collector {
	return &Collector{feature: feature}
}

// IncEventsWritten records one stored event of the given byte size.
func (c *Collector) IncEventsWritten(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsWritten++
	c.bytesWritten += bytes
	c.mu.Unlock()
}

// IncEventsDropped records one event dropped on the write path.
func (c *Collector) IncEventsDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDropped++
	c.mu.Unlock()
}

// IncFilesPurged records one batch file evicted by the storage budget.
func (c *Collector) IncFilesPurged() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesPurged++
	c.mu.Unlock()
}

// IncBatchesUploaded records one batch delivered to the collector.
func (c *Collector) IncBatchesUploaded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesUploaded++
	c.mu.Unlock()
}

// IncBatchesRejected records one batch dropped after a terminal (4xx)
// response.
func (c *Collector) IncBatchesRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesRejected++
	c.mu.Unlock()
}

// IncBatchesRetried records one batch kept for retry after a transient
// failure.
func (c *Collector) IncBatchesRetried() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesRetried++
	c.mu.Unlock()
}

// IncBatchesCorrupt records one undecodable batch file.
func (c *Collector) IncBatchesCorrupt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesCorrupt++
	c.mu.Unlock()
}

// IncCyclesSkipped records one upload cycle gated out by device conditions.
func (c *Collector) IncCyclesSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cyclesSkipped++
	c.mu.Unlock()
}

// IncCyclesNoData records one upload cycle that found nothing to send.
func (c *Collector) IncCyclesNoData() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cyclesNoData++
	c.mu.Unlock()
}

// Snapshot returns an atomic copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		EventsWritten:   c.eventsWritten,
		BytesWritten:    c.bytesWritten,
		EventsDropped:   c.eventsDropped,
		FilesPurged:     c.filesPurged,
		BatchesUploaded: c.batchesUploaded,
		BatchesRejected: c.batchesRejected,
		BatchesRetried:  c.batchesRetried,
		BatchesCorrupt:  c.batchesCorrupt,
		CyclesSkipped:   c.cyclesSkipped,
		CyclesNoData:    c.cyclesNoData,
		Feature:         c.feature,
	}
}
