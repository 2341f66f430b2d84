package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pithecene-io/courier/ipc"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/types"
)

var _ ipc.Sink = (*Registry)(nil)

// ErrUnknownFeature is returned for writes addressed to a feature no
// pipeline was registered for.
var ErrUnknownFeature = errors.New("unknown feature")

// Registry routes events to feature pipelines. It satisfies the intake
// sink contract, so a frame stream can feed it directly.
type Registry struct {
	mu       sync.RWMutex
	features map[types.Feature]*Feature
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{features: make(map[types.Feature]*Feature)}
}

// Register adds a feature pipeline. Registering the same feature twice is
// an error.
func (r *Registry) Register(f *Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.features[f.Name()]; ok {
		return fmt.Errorf("feature %s already registered", f.Name())
	}
	r.features[f.Name()] = f
	return nil
}

// Feature returns the registered pipeline for a feature.
func (r *Registry) Feature(name types.Feature) (*Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[name]
	return f, ok
}

// Write routes one event to its feature pipeline.
func (r *Registry) Write(feature types.Feature, event []byte) error {
	f, ok := r.Feature(feature)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	return f.Write(event)
}

// Start launches every registered pipeline's upload worker.
func (r *Registry) Start(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.features {
		f.Start(ctx)
	}
}

// Metrics returns a snapshot per feature, sorted by feature name.
func (r *Registry) Metrics() []metrics.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshots := make([]metrics.Snapshot, 0, len(r.features))
	for _, f := range r.features {
		snapshots = append(snapshots, f.Metrics())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Feature < snapshots[j].Feature
	})
	return snapshots
}

// Close closes every registered pipeline and joins their errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, f := range r.features {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.Name(), err))
		}
	}
	return errors.Join(errs...)
}
