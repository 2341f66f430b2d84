// Package pipeline assembles the per-feature event pipeline: a serialized
// write queue feeding the batch store, and an upload worker draining it.
// Features are fully independent; each one owns its directory, its metrics,
// and its upload backoff state.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/courier/config"
	"github.com/pithecene-io/courier/device"
	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/storage"
	"github.com/pithecene-io/courier/types"
	"github.com/pithecene-io/courier/upload"
)

// DefaultQueueSize bounds the in-memory write queue per feature. Producers
// never block on storage I/O; when the queue is full the event is dropped
// and counted.
const DefaultQueueSize = 1024

// FeatureConfig assembles one feature pipeline.
type FeatureConfig struct {
	Feature   types.Feature
	RootDir   string
	Preset    config.Preset
	Format    format.Format
	Transport upload.Transport
	Provider  device.Provider

	// ContentType of assembled batches. Defaults to application/json.
	ContentType string
	// QueueSize overrides DefaultQueueSize when positive.
	QueueSize int
}

// Feature is one independent pipeline instance. All writes funnel through a
// single queue goroutine, so the storage layer below sees strictly
// serialized writes.
type Feature struct {
	feature      types.Feature
	orchestrator *storage.Orchestrator
	writer       *storage.Writer
	worker       *upload.Worker
	logger       *log.Logger
	collector    *metrics.Collector

	queue chan []byte
	drain chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewFeature builds a feature pipeline rooted at RootDir/<feature>. Call
// Start to begin accepting writes and uploading.
func NewFeature(cfg FeatureConfig) (*Feature, error) {
	if err := cfg.Feature.Valid(); err != nil {
		return nil, err
	}
	if err := cfg.Preset.Validate(); err != nil {
		return nil, fmt.Errorf("preset for %s: %w", cfg.Feature, err)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("feature %s: transport is required", cfg.Feature)
	}
	if cfg.Provider == nil {
		cfg.Provider = device.HostProvider{}
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	logger := log.NewLogger(string(cfg.Feature))
	collector := metrics.NewCollector(string(cfg.Feature))

	dir := filepath.Join(cfg.RootDir, string(cfg.Feature))
	orchestrator, err := storage.NewOrchestrator(dir, limitsFrom(cfg.Preset), cfg.Format.Overhead(), logger, collector)
	if err != nil {
		return nil, fmt.Errorf("orchestrator for %s: %w", cfg.Feature, err)
	}

	writer := storage.NewWriter(orchestrator, cfg.Format, logger, collector)
	reader := storage.NewReader(orchestrator, cfg.Format, logger, collector)

	worker := upload.NewWorker(upload.WorkerConfig{
		Feature:   cfg.Feature,
		Reader:    reader,
		Transport: cfg.Transport,
		Provider:  cfg.Provider,
		Conditions: upload.Conditions{
			MinBatteryLevel: cfg.Preset.MinBatteryLevel,
		},
		Delay: upload.DelayConfig{
			Min:     cfg.Preset.MinUploadDelay,
			Max:     cfg.Preset.MaxUploadDelay,
			Default: cfg.Preset.DefaultUploadDelay,
			Factor:  cfg.Preset.DelayChangeFactor,
		},
		ContentType: cfg.ContentType,
		Logger:      logger,
		Collector:   collector,
	})

	f := &Feature{
		feature:      cfg.Feature,
		orchestrator: orchestrator,
		writer:       writer,
		worker:       worker,
		logger:       logger,
		collector:    collector,
		queue:        make(chan []byte, cfg.QueueSize),
		drain:        make(chan struct{}),
	}
	go f.drainQueue()
	return f, nil
}

func limitsFrom(p config.Preset) storage.Limits {
	return storage.Limits{
		MaxFileSize:        p.MaxFileSize,
		MaxFileAgeForWrite: p.MaxFileAgeForWrite,
		MinFileAgeForRead:  p.MinFileAgeForRead,
		MaxFileAgeForRead:  p.MaxFileAgeForRead,
		MaxDirectorySize:   p.MaxDirectorySize,
		MaxFileCount:       p.MaxFileCount,
		MaxEventsPerFile:   p.MaxEventsPerFile,
		MaxEventSize:       p.MaxEventSize,
	}
}

// Name returns the feature this pipeline serves.
func (f *Feature) Name() types.Feature { return f.feature }

// Start launches the upload worker. Writes are accepted as soon as the
// feature is constructed; Start only begins draining batches upstream.
func (f *Feature) Start(ctx context.Context) {
	f.worker.Start(ctx)
}

// Write enqueues one event. It never blocks: a full queue or a closed
// pipeline drops the event and counts it.
func (f *Feature) Write(event []byte) error {
	if len(event) == 0 {
		return nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.collector.IncEventsDropped()
		return fmt.Errorf("feature %s: pipeline closed", f.feature)
	}
	// Copy under the lock; the caller may reuse the buffer.
	owned := make([]byte, len(event))
	copy(owned, event)

	select {
	case f.queue <- owned:
		f.mu.Unlock()
		return nil
	default:
		f.mu.Unlock()
		f.collector.IncEventsDropped()
		f.logger.Warn("write queue saturated, dropping event", map[string]any{
			"queue_size": cap(f.queue),
		})
		return fmt.Errorf("feature %s: write queue full", f.feature)
	}
}

func (f *Feature) drainQueue() {
	defer close(f.drain)
	for event := range f.queue {
		// Writer failures are already counted and logged downstream.
		_ = f.writer.Write(event)
	}
}

// Metrics returns a point-in-time counter snapshot.
func (f *Feature) Metrics() metrics.Snapshot {
	return f.collector.Snapshot()
}

// Files lists the feature's batch files, oldest first.
func (f *Feature) Files() ([]storage.FileInfo, error) {
	return f.orchestrator.Snapshot()
}

// Close flushes queued events to disk, stops the upload worker, and
// releases the current batch file. Events written after Close are dropped.
func (f *Feature) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	<-f.drain
	f.worker.Stop()
	return f.orchestrator.Close()
}
