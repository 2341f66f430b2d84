package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Batch file names are the file's creation time in unix milliseconds,
// zero-padded to a fixed width so lexical order equals age order. The
// directory listing plus file metadata is the only persisted state; there is
// no index file, which makes the layout crash-consistent by construction.
const fileNameWidth = 13

// fileNameFor derives a batch file name from a creation time.
func fileNameFor(t time.Time) string {
	return fmt.Sprintf("%0*d", fileNameWidth, t.UnixMilli())
}

// creationTimeOf parses a batch file name back into its creation time.
// Returns false for names that are not batch files (wrong width, not a
// number); such files are ignored by the orchestrator.
func creationTimeOf(name string) (time.Time, bool) {
	if len(name) != fileNameWidth {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(name, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// File is a handle to one batch file. Write handles keep the file open for
// appending; read handles carry metadata only. Byte I/O on a File happens
// outside the orchestrator lock.
type File struct {
	path      string
	name      string
	createdAt time.Time

	// Mutated only on the feature's write goroutine.
	size   int64
	events int
	handle *os.File
}

// Path returns the file's absolute path.
func (f *File) Path() string { return f.path }

// Name returns the file's base name (its creation timestamp).
func (f *File) Name() string { return f.name }

// CreatedAt returns the file's creation time as encoded in its name.
func (f *File) CreatedAt() time.Time { return f.createdAt }

// Size returns the file's current byte size.
func (f *File) Size() int64 { return f.size }

// Events returns the number of events appended to this handle.
func (f *File) Events() int { return f.events }

// Append writes one encoded chunk to the file. The chunk is flushed to the
// OS before returning; fsync is deferred to Close to keep the per-event
// write cost flat.
func (f *File) Append(chunk []byte) error {
	if f.handle == nil {
		return wrapError("append", f.path, os.ErrClosed)
	}
	if _, err := f.handle.Write(chunk); err != nil {
		return wrapError("append", f.path, err)
	}
	f.size += int64(len(chunk))
	f.events++
	return nil
}

// Close syncs and closes the write handle. Safe to call on read handles and
// on already-closed files.
func (f *File) Close() error {
	if f.handle == nil {
		return nil
	}
	h := f.handle
	f.handle = nil
	if err := h.Sync(); err != nil {
		_ = h.Close()
		return wrapError("sync", f.path, err)
	}
	if err := h.Close(); err != nil {
		return wrapError("close", f.path, err)
	}
	return nil
}
