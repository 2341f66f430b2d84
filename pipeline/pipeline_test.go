package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/courier/config"
	"github.com/pithecene-io/courier/device"
	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/types"
	"github.com/pithecene-io/courier/upload"
)

func reachableProvider() device.Provider {
	return &device.StaticProvider{State: device.Snapshot{
		NetworkReachable: true,
		Battery:          device.BatteryCharging,
		BatteryLevel:     1.0,
	}}
}

func newTestFeature(t *testing.T, feature types.Feature, transport upload.Transport) *Feature {
	t.Helper()
	f, err := NewFeature(FeatureConfig{
		Feature:   feature,
		RootDir:   t.TempDir(),
		Preset:    config.Frequent(),
		Format:    format.JSONArray(),
		Transport: transport,
		Provider:  reachableProvider(),
	})
	if err != nil {
		t.Fatalf("NewFeature failed: %v", err)
	}
	return f
}

func TestFeature_WritePersists(t *testing.T) {
	root := t.TempDir()
	f, err := NewFeature(FeatureConfig{
		Feature:   types.FeatureLogs,
		RootDir:   root,
		Preset:    config.Frequent(),
		Format:    format.JSONArray(),
		Transport: &upload.StubTransport{},
		Provider:  reachableProvider(),
	})
	if err != nil {
		t.Fatalf("NewFeature failed: %v", err)
	}

	events := [][]byte{
		[]byte(`{"message":"one"}`),
		[]byte(`{"message":"two"}`),
		[]byte(`{"message":"three"}`),
	}
	for _, e := range events {
		if err := f.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	files, err := f.Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}

	data, err := os.ReadFile(filepath.Join(root, string(types.FeatureLogs), files[0].Name))
	if err != nil {
		t.Fatalf("reading batch file: %v", err)
	}
	decoded, err := format.JSONArray().Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(decoded), len(events))
	}
	for i, want := range events {
		if string(decoded[i]) != string(want) {
			t.Errorf("event %d = %q, want %q", i, decoded[i], want)
		}
	}

	snap := f.Metrics()
	if snap.EventsWritten != int64(len(events)) {
		t.Errorf("EventsWritten = %d, want %d", snap.EventsWritten, len(events))
	}
}

func TestFeature_WriteAfterClose(t *testing.T) {
	f := newTestFeature(t, types.FeatureLogs, &upload.StubTransport{})
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := f.Write([]byte(`{"late":true}`)); err == nil {
		t.Fatal("Write after Close should fail")
	}
	if got := f.Metrics().EventsDropped; got != 1 {
		t.Errorf("EventsDropped = %d, want 1", got)
	}
}

func TestFeature_CloseIdempotent(t *testing.T) {
	f := newTestFeature(t, types.FeatureLogs, &upload.StubTransport{})
	if err := f.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestFeature_InvalidConfig(t *testing.T) {
	_, err := NewFeature(FeatureConfig{
		Feature:   "Not Valid!",
		RootDir:   t.TempDir(),
		Preset:    config.Frequent(),
		Format:    format.JSONArray(),
		Transport: &upload.StubTransport{},
	})
	if err == nil {
		t.Error("invalid feature name should be rejected")
	}

	_, err = NewFeature(FeatureConfig{
		Feature: types.FeatureLogs,
		RootDir: t.TempDir(),
		Preset:  config.Frequent(),
		Format:  format.JSONArray(),
	})
	if err == nil {
		t.Error("missing transport should be rejected")
	}
}

func TestFeature_EndToEndUpload(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-dependent")
	}

	transport := &upload.StubTransport{}
	f := newTestFeature(t, types.FeatureTraces, transport)
	defer f.Close()

	if err := f.Write([]byte(`{"span_id":"abc"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if transport.Calls() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if transport.Calls() == 0 {
		t.Fatal("batch was never uploaded")
	}

	// Confirmed batches are removed from disk.
	for time.Now().Before(deadline) {
		files, err := f.Files()
		if err != nil {
			t.Fatalf("Files failed: %v", err)
		}
		if len(files) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("uploaded batch was not deleted")
}

func TestRegistry_RoutesByFeature(t *testing.T) {
	logs := newTestFeature(t, types.FeatureLogs, &upload.StubTransport{})
	traces := newTestFeature(t, types.FeatureTraces, &upload.StubTransport{})

	registry := NewRegistry()
	if err := registry.Register(logs); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(traces); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(logs); err == nil {
		t.Error("duplicate registration should fail")
	}

	if err := registry.Write(types.FeatureLogs, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Write logs failed: %v", err)
	}
	if err := registry.Write(types.FeatureTraces, []byte(`{"b":2}`)); err != nil {
		t.Fatalf("Write traces failed: %v", err)
	}

	err := registry.Write(types.FeatureRUM, []byte(`{"c":3}`))
	if !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("err = %v, want ErrUnknownFeature", err)
	}

	if err := registry.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := logs.Metrics().EventsWritten; got != 1 {
		t.Errorf("logs EventsWritten = %d, want 1", got)
	}
	if got := traces.Metrics().EventsWritten; got != 1 {
		t.Errorf("traces EventsWritten = %d, want 1", got)
	}
}

func TestRegistry_MetricsSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []types.Feature{types.FeatureTraces, types.FeatureLogs, types.FeatureRUM} {
		f := newTestFeature(t, name, &upload.StubTransport{})
		if err := registry.Register(f); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	defer registry.Close()

	snaps := registry.Metrics()
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i-1].Feature >= snaps[i].Feature {
			t.Errorf("snapshots not sorted: %q before %q", snaps[i-1].Feature, snaps[i].Feature)
		}
	}
}
