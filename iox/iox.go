// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"io"
	"os"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(pipeline))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls where errors are unactionable:
//
//	defer iox.DiscardErr(orchestrator.Close)
func DiscardErr(fn func() error) { _ = fn() }

// SyncDir fsyncs a directory so that recent file creations and deletions in
// it survive a power loss. A failure is returned for the caller to log;
// directory syncs are best-effort on platforms that do not support them.
func SyncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer DiscardClose(d)
	return d.Sync()
}
