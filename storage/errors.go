// Package storage owns the on-disk batch directories: which file receives
// the next write, which file is the next read target, and when files are
// rotated or purged.
//
// This file defines sentinel errors and the classified error wrapper for
// storage failures. Callers use errors.Is/errors.As for typed assertions
// rather than string matching.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNoFile indicates no batch file is currently eligible for reading.
	ErrNoFile = errors.New("no batch file available")

	// ErrDiskFull indicates the device is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrPermissionDenied indicates a filesystem permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target file or directory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEventTooLarge indicates an event exceeds the configured per-event
	// size limit and was dropped.
	ErrEventTooLarge = errors.New("event exceeds size limit")
)

// StorageError wraps an underlying error with storage classification.
// It preserves the original error in the chain for inspection via errors.As.
type StorageError struct {
	// Kind is the sentinel error for classification (e.g. ErrDiskFull).
	Kind error
	// Op is the operation that failed (e.g. "create", "append", "read").
	Op string
	// Path is the file path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapError classifies and wraps a filesystem error. Returns nil if err is
// nil. Classification uses typed checks; unrecognized errors keep a generic
// kind so the caller's drop-and-log handling still applies.
func wrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classify(err), Op: op, Path: path, Err: err}
}

var errUnclassified = errors.New("storage error")

func classify(err error) error {
	switch {
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return ErrDiskFull
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	default:
		return errUnclassified
	}
}
