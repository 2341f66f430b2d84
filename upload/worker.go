package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/courier/device"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/storage"
	"github.com/pithecene-io/courier/types"
)

// WorkerConfig assembles one feature's upload worker.
type WorkerConfig struct {
	Feature     types.Feature
	Reader      *storage.Reader
	Transport   Transport
	Provider    device.Provider
	Conditions  Conditions
	Delay       DelayConfig
	ContentType string
	Logger      *log.Logger
	Collector   *metrics.Collector
}

// Worker runs one feature's upload cycle for the lifetime of the feature:
// wait for the current delay, take a device snapshot, gate on conditions,
// read the next batch, send it, classify the outcome, adjust the delay.
//
// Each feature runs its own worker with its own delay state; one feature's
// backoff never affects another's.
type Worker struct {
	cfg   WorkerConfig
	delay *Delay

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewWorker creates a worker; call Start to begin cycling.
func NewWorker(cfg WorkerConfig) *Worker {
	return &Worker{cfg: cfg, delay: NewDelay(cfg.Delay)}
}

// Start launches the cycle goroutine. The worker stops when ctx is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop cancels the worker and waits for the current cycle to finish. A
// cycle mid-wait exits immediately with no side effects; a cycle mid-send
// lets the network call resolve through the normal classification first.
func (w *Worker) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
	if w.done != nil {
		<-w.done
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	timer := time.NewTimer(w.delay.Current())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		w.cycle(ctx)

		if ctx.Err() != nil {
			return
		}
		timer.Reset(w.delay.Current())
	}
}

// cycle is one pass through the upload state machine.
func (w *Worker) cycle(ctx context.Context) {
	snapshot := w.cfg.Provider.Snapshot()
	if blockers := w.cfg.Conditions.Blockers(snapshot); len(blockers) > 0 {
		w.cfg.Collector.IncCyclesSkipped()
		w.delay.Increase()
		w.cfg.Logger.Debug("upload cycle skipped", map[string]any{"blockers": blockers})
		return
	}

	batch, err := w.cfg.Reader.ReadNextBatch()
	if err != nil {
		if errors.Is(err, storage.ErrNoFile) {
			w.cfg.Collector.IncCyclesNoData()
		} else {
			w.cfg.Logger.Warn("batch read failed", map[string]any{"error": err.Error()})
		}
		w.delay.Increase()
		return
	}

	code, err := w.cfg.Transport.Send(ctx, Payload{
		Feature:     w.cfg.Feature,
		Name:        batch.Name,
		Body:        batch.Body,
		ContentType: w.cfg.ContentType,
	})

	switch {
	case err != nil:
		// Network-level failure, including transport timeout: the batch
		// stays on disk for a later cycle.
		batch.Discard()
		w.cfg.Collector.IncBatchesRetried()
		w.delay.Increase()
		w.cfg.Logger.Debug("batch upload failed, will retry", map[string]any{
			"batch": batch.Name, "error": err.Error(),
		})
	case code >= 200 && code < 300:
		if cerr := batch.Confirm(); cerr != nil {
			w.cfg.Logger.Warn("uploaded batch not deleted", map[string]any{
				"batch": batch.Name, "error": cerr.Error(),
			})
		}
		w.cfg.Collector.IncBatchesUploaded()
		w.delay.Decrease()
	case code >= 400 && code < 500:
		// Client error: retrying a batch the collector rejects is
		// pointless, so the data is dropped.
		if cerr := batch.Confirm(); cerr != nil {
			w.cfg.Logger.Warn("rejected batch not deleted", map[string]any{
				"batch": batch.Name, "error": cerr.Error(),
			})
		}
		w.cfg.Collector.IncBatchesRejected()
		w.delay.Increase()
		w.cfg.Logger.Warn("batch rejected by collector", map[string]any{
			"batch": batch.Name, "status": code,
		})
	default:
		// Server errors and anything unexpected are retryable.
		batch.Discard()
		w.cfg.Collector.IncBatchesRetried()
		w.delay.Increase()
		w.cfg.Logger.Debug("collector unavailable, will retry", map[string]any{
			"batch": batch.Name, "status": code,
		})
	}
}
