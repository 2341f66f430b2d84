package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pithecene-io/courier/iox"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/metrics"
)

// Limits bounds one feature directory. Values come from the active
// performance preset; zero disables the corresponding check except where
// noted.
type Limits struct {
	// MaxFileSize is the byte size above which a writable file is rotated.
	MaxFileSize int64
	// MaxFileAgeForWrite is the age above which a writable file stops
	// accepting events.
	MaxFileAgeForWrite time.Duration
	// MinFileAgeForRead is the grace period before a file becomes eligible
	// for reading. It is the sole concurrency guard between writer and
	// reader and must exceed any realistic write-to-write gap.
	MinFileAgeForRead time.Duration
	// MaxFileAgeForRead is the age above which a stored file is considered
	// obsolete and purged without upload.
	MaxFileAgeForRead time.Duration
	// MaxDirectorySize is the total byte budget for the directory.
	MaxDirectorySize int64
	// MaxFileCount is the maximum number of batch files kept on disk.
	MaxFileCount int
	// MaxEventsPerFile caps the events per batch file.
	MaxEventsPerFile int
	// MaxEventSize is the per-event byte limit; larger events are dropped
	// by the writer.
	MaxEventSize int64
}

// FileInfo describes one stored batch file, for inspection surfaces.
type FileInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Size      int64     `json:"size" yaml:"size"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Writable  bool      `json:"writable" yaml:"writable"`
}

// Orchestrator is the sole authority over one feature's batch directory.
// It decides which file receives the next write and which file is the next
// read target, and enforces the storage budget.
//
// Directory bookkeeping runs under a single mutex; byte I/O on a returned
// File happens outside the lock.
type Orchestrator struct {
	dir       string
	limits    Limits
	overhead  int64
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time

	mu       sync.Mutex
	current  *File
	lastName string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source. Tests use this to control file ages
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates the directory if needed and returns an
// orchestrator over it. separatorOverhead is the worst-case extra bytes the
// data format adds per event (Format.Overhead).
func NewOrchestrator(dir string, limits Limits, separatorOverhead int64, logger *log.Logger, collector *metrics.Collector, opts ...Option) (*Orchestrator, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, wrapError("mkdir", dir, err)
	}
	o := &Orchestrator{
		dir:       dir,
		limits:    limits,
		overhead:  separatorOverhead,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Dir returns the directory this orchestrator owns.
func (o *Orchestrator) Dir() string { return o.dir }

// FileForWriting returns the current writable file when it is young enough
// and has room for one more event of the estimated size; otherwise it closes
// the current file and creates a new one. At most one writable file exists
// at any time.
func (o *Orchestrator) FileForWriting(estimatedSize int64) (*File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && o.reusable(o.current, estimatedSize) {
		return o.current, nil
	}

	old := o.current
	o.current = nil
	if old != nil {
		if err := old.Close(); err != nil {
			o.logger.Warn("failed to close rotated batch file", map[string]any{
				"path": old.path, "error": err.Error(),
			})
		}
	}

	f, err := o.createFile()
	if err != nil {
		return nil, err
	}
	o.current = f
	return f, nil
}

func (o *Orchestrator) reusable(f *File, estimatedSize int64) bool {
	if o.now().Sub(f.createdAt) >= o.limits.MaxFileAgeForWrite {
		return false
	}
	if f.size+estimatedSize+o.overhead > o.limits.MaxFileSize {
		return false
	}
	if o.limits.MaxEventsPerFile > 0 && f.events >= o.limits.MaxEventsPerFile {
		return false
	}
	return true
}

// createFile opens a new exclusive batch file named by the current time.
// Creation within the same millisecond as the previous file bumps the name
// by one so that names stay strictly increasing.
func (o *Orchestrator) createFile() (*File, error) {
	created := o.now()
	name := fileNameFor(created)
	if o.lastName != "" && name <= o.lastName {
		bumped, _ := creationTimeOf(o.lastName)
		created = bumped.Add(time.Millisecond)
		name = fileNameFor(created)
	}

	path := filepath.Join(o.dir, name)
	h, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, wrapError("create", path, err)
	}
	o.lastName = name
	if err := iox.SyncDir(o.dir); err != nil {
		o.logger.Debug("directory sync failed", map[string]any{"error": err.Error()})
	}
	return &File{path: path, name: name, createdAt: created, handle: h}, nil
}

// FileForReading returns the oldest file whose age has passed the read grace
// period. The current writable file is never returned. ErrNoFile is returned
// when nothing is eligible.
func (o *Orchestrator) FileForReading() (*File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos, err := o.list()
	if err != nil {
		return nil, err
	}

	now := o.now()
	for _, fi := range infos {
		if o.current != nil && fi.Name == o.current.name {
			continue
		}
		if now.Sub(fi.CreatedAt) < o.limits.MinFileAgeForRead {
			// Younger files follow; listing is oldest-first.
			break
		}
		return &File{
			path:      filepath.Join(o.dir, fi.Name),
			name:      fi.Name,
			createdAt: fi.CreatedAt,
			size:      fi.Size,
		}, nil
	}
	return nil, ErrNoFile
}

// Delete removes a batch file after its contents were consumed. Deleting a
// file that is already gone is not an error.
func (o *Orchestrator) Delete(f *File) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deleteLocked(f.path)
}

func (o *Orchestrator) deleteLocked(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapError("delete", path, err)
	}
	return nil
}

// PurgeExcess deletes oldest files until the directory is back within its
// size and count budgets, and drops files older than MaxFileAgeForRead as
// obsolete. It runs after every write and read, independent of upload
// outcome, so offline buffering stays bounded at the cost of dropping the
// oldest unsent data.
func (o *Orchestrator) PurgeExcess() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos, err := o.list()
	if err != nil {
		return err
	}

	now := o.now()
	var total int64
	kept := infos[:0]
	for _, fi := range infos {
		writable := o.current != nil && fi.Name == o.current.name
		if !writable && o.limits.MaxFileAgeForRead > 0 && now.Sub(fi.CreatedAt) > o.limits.MaxFileAgeForRead {
			if err := o.deleteLocked(filepath.Join(o.dir, fi.Name)); err != nil {
				return err
			}
			o.collector.IncFilesPurged()
			o.logger.Debug("purged obsolete batch file", map[string]any{"name": fi.Name})
			continue
		}
		total += fi.Size
		kept = append(kept, fi)
	}

	overCount := func() bool {
		return o.limits.MaxFileCount > 0 && len(kept) > o.limits.MaxFileCount
	}
	overSize := func() bool {
		return o.limits.MaxDirectorySize > 0 && total > o.limits.MaxDirectorySize
	}
	for len(kept) > 0 && (overCount() || overSize()) {
		oldest := kept[0]
		if o.current != nil && oldest.Name == o.current.name {
			// Never delete the file the writer holds open.
			break
		}
		if err := o.deleteLocked(filepath.Join(o.dir, oldest.Name)); err != nil {
			return err
		}
		o.collector.IncFilesPurged()
		o.logger.Debug("purged batch file over budget", map[string]any{
			"name": oldest.Name, "size": oldest.Size,
		})
		total -= oldest.Size
		kept = kept[1:]
	}
	return nil
}

// Snapshot lists the stored batch files oldest-first, for inspection.
func (o *Orchestrator) Snapshot() ([]FileInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos, err := o.list()
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if o.current != nil && infos[i].Name == o.current.name {
			infos[i].Writable = true
			infos[i].Size = o.current.size
		}
	}
	return infos, nil
}

// Close seals the current writable file, if any. Further writes will open a
// new file.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	f := o.current
	o.current = nil
	return f.Close()
}

// list returns the directory's batch files sorted oldest-first. Entries
// whose names do not parse as batch file names are ignored.
func (o *Orchestrator) list() ([]FileInfo, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, wrapError("list", o.dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, ok := creationTimeOf(e.Name())
		if !ok {
			continue
		}
		st, err := e.Info()
		if err != nil {
			// Raced with a concurrent delete; skip.
			continue
		}
		infos = append(infos, FileInfo{Name: e.Name(), Size: st.Size(), CreatedAt: created})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
