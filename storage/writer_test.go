package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/courier/format"
)

func TestWriter_WriteAndDecode(t *testing.T) {
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, testLimits(), clock)
	w := NewWriter(o, format.JSONArray(), nil, collector)

	events := [][]byte{
		[]byte(`{"n":1}`),
		[]byte(`{"n":2,"tags":["a","b"]}`),
		[]byte(`{"n":3}`),
	}
	for _, e := range events {
		if err := w.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d files, want 1", len(infos))
	}

	data, err := os.ReadFile(filepath.Join(o.Dir(), infos[0].Name))
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

	snap := collector.Snapshot()
	if snap.EventsWritten != int64(len(events)) {
		t.Errorf("EventsWritten = %d, want %d", snap.EventsWritten, len(events))
	}
	if snap.EventsDropped != 0 {
		t.Errorf("EventsDropped = %d, want 0", snap.EventsDropped)
	}
}

func TestWriter_DropsOversizedEvent(t *testing.T) {
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, testLimits(), clock)
	w := NewWriter(o, format.JSONArray(), nil, collector)

	err := w.Write(make([]byte, 51))
	if !errors.Is(err, ErrEventTooLarge) {
		t.Fatalf("err = %v, want ErrEventTooLarge", err)
	}
	if got := collector.Snapshot().EventsDropped; got != 1 {
		t.Errorf("EventsDropped = %d, want 1", got)
	}

	// The drop happens before any file is touched.
	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("got %d files, want 0", len(infos))
	}
}

func TestWriter_EmptyEventIsNoop(t *testing.T) {
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, testLimits(), clock)
	w := NewWriter(o, format.JSONArray(), nil, collector)

	if err := w.Write(nil); err != nil {
		t.Fatalf("Write(nil) failed: %v", err)
	}
	if got := collector.Snapshot().EventsWritten; got != 0 {
		t.Errorf("EventsWritten = %d, want 0", got)
	}
}

func TestWriter_RotationSplitsBatches(t *testing.T) {
	limits := testLimits()
	limits.MaxFileSize = 20
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, limits, clock)
	w := NewWriter(o, format.JSONArray(), nil, collector)

	// Each event is 9 bytes plus format framing; two fill a 20-byte file.
	for i := 0; i < 4; i++ {
		if err := w.Write([]byte(`{"n":111}`)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) < 2 {
		t.Errorf("got %d files, want at least 2 after size rotation", len(infos))
	}
}

func TestWriter_PurgesAfterWrite(t *testing.T) {
	limits := testLimits()
	limits.MaxFileCount = 1
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, limits, clock)
	w := NewWriter(o, format.JSONArray(), nil, nil)

	if err := w.Write([]byte(`{"n":1}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	clock.Advance(6 * time.Second)
	if err := w.Write([]byte(`{"n":2}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("got %d files, want 1 (purge runs after write)", len(infos))
	}
}
