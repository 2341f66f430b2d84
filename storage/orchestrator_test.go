package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/courier/metrics"
)

// fakeClock is a controllable time source for age-dependent tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testLimits() Limits {
	return Limits{
		MaxFileSize:        100,
		MaxFileAgeForWrite: 5 * time.Second,
		MinFileAgeForRead:  6 * time.Second,
		MaxFileAgeForRead:  time.Hour,
		MaxDirectorySize:   1000,
		MaxFileCount:       10,
		MaxEventsPerFile:   50,
		MaxEventSize:       50,
	}
}

func newTestOrchestrator(t *testing.T, limits Limits, clock *fakeClock) (*Orchestrator, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector("test")
	o, err := NewOrchestrator(t.TempDir(), limits, 1, nil, collector, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o, collector
}

func TestOrchestrator_ReusesWritableFile(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	first, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	second, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if first != second {
		t.Error("writable file should be reused while young and under budget")
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d files, want 1", len(infos))
	}
	if !infos[0].Writable {
		t.Error("single file should be marked writable")
	}
}

func TestOrchestrator_RotatesOnAge(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	first, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}

	clock.Advance(5 * time.Second)
	second, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if first.Name() == second.Name() {
		t.Error("file past MaxFileAgeForWrite should be rotated")
	}
}

func TestOrchestrator_RotatesOnSize(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	first, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := first.Append(make([]byte, 95)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// 95 + 10 + separator overhead exceeds MaxFileSize 100.
	second, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if first.Name() == second.Name() {
		t.Error("full file should be rotated")
	}
}

func TestOrchestrator_RotatesOnEventCount(t *testing.T) {
	limits := testLimits()
	limits.MaxEventsPerFile = 2
	limits.MaxFileSize = 1 << 20
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, limits, clock)

	first, err := o.FileForWriting(1)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := first.Append([]byte("x")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	second, err := o.FileForWriting(1)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if first.Name() == second.Name() {
		t.Error("file at event cap should be rotated")
	}
}

func TestOrchestrator_NamesStrictlyIncrease(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	var prev string
	for i := 0; i < 5; i++ {
		// Clock frozen: every rotation lands in the same millisecond.
		f, err := o.FileForWriting(200)
		if err != nil {
			t.Fatalf("FileForWriting failed: %v", err)
		}
		if prev != "" && f.Name() <= prev {
			t.Fatalf("name %q not greater than previous %q", f.Name(), prev)
		}
		prev = f.Name()
	}
}

func TestOrchestrator_GracePeriodGuardsReads(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	f, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := f.Append([]byte("event")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := o.FileForReading(); !errors.Is(err, ErrNoFile) {
		t.Errorf("young file: err = %v, want ErrNoFile", err)
	}

	// Old enough to read, but still held by the writer.
	clock.Advance(10 * time.Second)
	if _, err := o.FileForReading(); !errors.Is(err, ErrNoFile) {
		t.Errorf("current writable file: err = %v, want ErrNoFile", err)
	}

	// Rotation releases it.
	if _, err := o.FileForWriting(10); err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	got, err := o.FileForReading()
	if err != nil {
		t.Fatalf("FileForReading failed: %v", err)
	}
	if got.Name() != f.Name() {
		t.Errorf("read file = %q, want %q", got.Name(), f.Name())
	}
}

func TestOrchestrator_FileForReading_OldestFirst(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	var names []string
	for i := 0; i < 3; i++ {
		f, err := o.FileForWriting(10)
		if err != nil {
			t.Fatalf("FileForWriting failed: %v", err)
		}
		if err := f.Append([]byte("e")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		names = append(names, f.Name())
		clock.Advance(6 * time.Second)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	clock.Advance(10 * time.Second)

	got, err := o.FileForReading()
	if err != nil {
		t.Fatalf("FileForReading failed: %v", err)
	}
	if got.Name() != names[0] {
		t.Errorf("read file = %q, want oldest %q", got.Name(), names[0])
	}
}

func TestOrchestrator_PurgeExcess_CountBudget(t *testing.T) {
	limits := testLimits()
	limits.MaxFileCount = 2
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, limits, clock)

	var names []string
	for i := 0; i < 4; i++ {
		f, err := o.FileForWriting(10)
		if err != nil {
			t.Fatalf("FileForWriting failed: %v", err)
		}
		if err := f.Append([]byte("e")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		names = append(names, f.Name())
		clock.Advance(6 * time.Second)
	}

	if err := o.PurgeExcess(); err != nil {
		t.Fatalf("PurgeExcess failed: %v", err)
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d files after purge, want 2", len(infos))
	}
	// The two oldest are gone, the two newest survive.
	if infos[0].Name != names[2] || infos[1].Name != names[3] {
		t.Errorf("surviving files %q, %q; want %q, %q", infos[0].Name, infos[1].Name, names[2], names[3])
	}
	if got := collector.Snapshot().FilesPurged; got != 2 {
		t.Errorf("FilesPurged = %d, want 2", got)
	}
}

func TestOrchestrator_PurgeExcess_SizeBudget(t *testing.T) {
	limits := testLimits()
	limits.MaxDirectorySize = 120
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, limits, clock)

	for i := 0; i < 3; i++ {
		f, err := o.FileForWriting(10)
		if err != nil {
			t.Fatalf("FileForWriting failed: %v", err)
		}
		if err := f.Append(make([]byte, 50)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		clock.Advance(6 * time.Second)
	}

	if err := o.PurgeExcess(); err != nil {
		t.Fatalf("PurgeExcess failed: %v", err)
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	var total int64
	for _, fi := range infos {
		total += fi.Size
	}
	if total > 120 {
		t.Errorf("directory size %d exceeds budget 120", total)
	}
	if len(infos) != 2 {
		t.Errorf("got %d files, want 2", len(infos))
	}
}

func TestOrchestrator_PurgeExcess_Obsolete(t *testing.T) {
	clock := newFakeClock()
	o, collector := newTestOrchestrator(t, testLimits(), clock)

	f, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := f.Append([]byte("stale")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if err := o.PurgeExcess(); err != nil {
		t.Fatalf("PurgeExcess failed: %v", err)
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("got %d files, want 0 after obsolete purge", len(infos))
	}
	if got := collector.Snapshot().FilesPurged; got != 1 {
		t.Errorf("FilesPurged = %d, want 1", got)
	}
}

func TestOrchestrator_PurgeExcess_SparesWritable(t *testing.T) {
	limits := testLimits()
	limits.MaxDirectorySize = 10
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, limits, clock)

	f, err := o.FileForWriting(5)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := f.Append(make([]byte, 50)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := o.PurgeExcess(); err != nil {
		t.Fatalf("PurgeExcess failed: %v", err)
	}
	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("writable file must survive purge; got %d files", len(infos))
	}
}

func TestOrchestrator_DeleteIdempotent(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	f, err := o.FileForWriting(10)
	if err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := o.Delete(f); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := o.Delete(f); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestOrchestrator_ListIgnoresForeignFiles(t *testing.T) {
	clock := newFakeClock()
	o, _ := newTestOrchestrator(t, testLimits(), clock)

	if _, err := o.FileForWriting(10); err != nil {
		t.Fatalf("FileForWriting failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(o.Dir(), ".DS_Store"), []byte("junk"), 0o600); err != nil {
		t.Fatalf("writing foreign file: %v", err)
	}

	infos, err := o.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("got %d files, want 1 (foreign names ignored)", len(infos))
	}
}

func TestFileName_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	name := fileNameFor(at)
	if len(name) != fileNameWidth {
		t.Fatalf("name %q has width %d, want %d", name, len(name), fileNameWidth)
	}
	got, ok := creationTimeOf(name)
	if !ok {
		t.Fatalf("creationTimeOf(%q) not ok", name)
	}
	if !got.Equal(at) {
		t.Errorf("round-trip = %v, want %v", got, at)
	}

	for _, bad := range []string{"", "abc", "12345", "00000000000ab"} {
		if _, ok := creationTimeOf(bad); ok {
			t.Errorf("creationTimeOf(%q) should not parse", bad)
		}
	}
}
