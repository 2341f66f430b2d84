// Package format defines the data format used to join serialized events into
// one storable, transmittable payload.
//
// A Format is a pure encoding policy: a prefix written once at the start of a
// payload, a separator written between events, and a suffix written once at
// the end. Encoding is incremental by design — appending one more event to a
// growing batch file costs one separator plus the event bytes, never a
// re-encode of the file.
package format

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformed is returned by Decode when the payload does not match the
// format (missing prefix/suffix, or empty event slots). Use errors.Is for
// classification; a malformed batch is not retryable.
var ErrMalformed = errors.New("malformed payload")

// Format describes how event blobs are joined into a payload.
// The zero value concatenates events with no delimiters and cannot be
// decoded; use one of the prebuilt formats or set a non-empty Separator.
//
// Unless TrackNesting is set, events must not contain the separator sequence
// for Decode to be the exact inverse of Encode (the NDJSON constraint).
type Format struct {
	// Prefix is written once before the first event.
	Prefix []byte
	// Separator is written between consecutive events.
	Separator []byte
	// Suffix is written once after the last event.
	Suffix []byte
	// TrackNesting makes Decode ignore separator bytes that occur inside
	// JSON objects, arrays, or strings. Required when events are JSON
	// values that themselves contain the separator.
	TrackNesting bool
}

// JSONArray joins events into a JSON array: [e1,e2,e3].
// Suitable for features whose events are individual JSON objects.
func JSONArray() Format {
	return Format{
		Prefix:       []byte("["),
		Separator:    []byte(","),
		Suffix:       []byte("]"),
		TrackNesting: true,
	}
}

// NewlineDelimited joins events with newlines and no envelope: e1\ne2\ne3.
// Suitable for line-oriented collectors.
func NewlineDelimited() Format {
	return Format{Separator: []byte("\n")}
}

// Overhead returns the worst-case extra bytes one more event adds to a
// growing payload. Orchestrators use it when checking whether an event still
// fits in the current batch file.
func (f Format) Overhead() int64 {
	return int64(len(f.Separator))
}

// Encode joins events into a single payload. An empty sequence encodes to
// prefix+suffix (or nil when both are empty).
func (f Format) Encode(events [][]byte) []byte {
	size := len(f.Prefix) + len(f.Suffix)
	for i, e := range events {
		if i > 0 {
			size += len(f.Separator)
		}
		size += len(e)
	}
	if size == 0 {
		return nil
	}

	out := make([]byte, 0, size)
	out = append(out, f.Prefix...)
	for i, e := range events {
		if i > 0 {
			out = append(out, f.Separator...)
		}
		out = append(out, e...)
	}
	return append(out, f.Suffix...)
}

// AppendChunk returns the bytes to append to a growing batch file for one
// more event. The first event in a file carries the prefix; later events
// carry the separator. The suffix is written by SealChunk when the file is
// closed.
func (f Format) AppendChunk(event []byte, first bool) []byte {
	var lead []byte
	if first {
		lead = f.Prefix
	} else {
		lead = f.Separator
	}
	out := make([]byte, 0, len(lead)+len(event))
	out = append(out, lead...)
	return append(out, event...)
}

// SealChunk returns the suffix bytes that close a payload started with
// AppendChunk calls.
func (f Format) SealChunk() []byte {
	return f.Suffix
}

// Decode splits a payload back into the original event blobs. It is the
// exact inverse of Encode for any sequence of non-empty events.
//
// A payload without the suffix is accepted: batch files grow by appending
// separator+event and are only sealed with the suffix when the payload is
// assembled for upload, so an unsealed (or crash-interrupted) file must
// still decode. Payloads missing the prefix, or with empty event slots,
// return ErrMalformed.
func (f Format) Decode(data []byte) ([][]byte, error) {
	body := data
	if len(f.Prefix) > 0 {
		if !bytes.HasPrefix(body, f.Prefix) {
			return nil, fmt.Errorf("%w: missing prefix", ErrMalformed)
		}
		body = body[len(f.Prefix):]
	}
	if len(f.Suffix) > 0 && bytes.HasSuffix(body, f.Suffix) {
		body = body[:len(body)-len(f.Suffix)]
	}
	if len(body) == 0 {
		return nil, nil
	}
	if len(f.Separator) == 0 {
		// No separator: the payload is a single event.
		return [][]byte{body}, nil
	}

	var parts [][]byte
	if f.TrackNesting {
		parts = splitTopLevel(body, f.Separator)
	} else {
		parts = bytes.Split(body, f.Separator)
	}

	events := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: empty event", ErrMalformed)
		}
		events = append(events, p)
	}
	return events, nil
}

// splitTopLevel splits body on sep, skipping separator occurrences inside
// JSON strings or nested objects/arrays. A payload that is not valid JSON
// may split at the wrong positions; the resulting events then fail the
// caller's own deserialization, which is the same corrupt-batch outcome.
func splitTopLevel(body, sep []byte) [][]byte {
	var (
		parts    [][]byte
		start    int
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
		case depth == 0 && bytes.HasPrefix(body[i:], sep):
			parts = append(parts, body[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, body[start:])
}
