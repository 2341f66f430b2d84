package ipc

import (
	"context"
	"io"

	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/types"
)

// Sink receives decoded intake events. Implementations must be safe for use
// from the single intake goroutine.
type Sink interface {
	Write(feature types.Feature, event []byte) error
}

// Intake drains a frame stream into a sink. Frames that fail to decode are
// logged and skipped; fatal framing errors stop the intake.
type Intake struct {
	sink   Sink
	logger *log.Logger
}

// NewIntake creates an intake feeding the given sink.
func NewIntake(sink Sink, logger *log.Logger) *Intake {
	return &Intake{sink: sink, logger: logger}
}

// Run consumes frames from r until EOF, a fatal frame error, or context
// cancellation. A clean EOF returns nil.
func (in *Intake) Run(ctx context.Context, r io.Reader) error {
	decoder := NewFrameDecoder(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Framing errors leave the stream at an unknown offset.
			return err
		}

		envelope, err := DecodeEnvelope(payload)
		if err != nil {
			in.logger.Warn("skipping undecodable frame", map[string]any{
				"error": err.Error(),
			})
			continue
		}

		if err := in.sink.Write(envelope.Feature, envelope.Event); err != nil {
			in.logger.Warn("sink rejected event", map[string]any{
				"feature": envelope.Feature.String(),
				"error":   err.Error(),
			})
		}
	}
}
