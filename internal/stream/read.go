package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
)

// ReadConfig is used to configure how Read behaves.
type ReadConfig struct {
	// ChunkSize is the size of the buffer used for each read from the underlying reader. It defaults to
	// 4KB.
	ChunkSize int
	// FlushRemainder makes Read decode a trailing line that isn't terminated by a newline when the stream
	// ends. By default such a line is discarded.
	FlushRemainder bool
	// Logger receives decode diagnostics. Nothing is logged if it is nil.
	Logger *slog.Logger
}

const defaultChunkSize = 4 << 10

// Read decodes an answer stream and yields its events in order. Malformed lines and frames are skipped.
// Iteration stops after the first read error, which is yielded; reaching EOF ends the iteration without
// an error. Read checks ctx between reads, and the reader itself should be bound to the same context
// (as an HTTP response body is) so that a blocked read is interrupted too.
//
// Read doesn't stop on Done: the caller decides whether the stream is over.
func Read(ctx context.Context, r io.Reader, cfg *ReadConfig) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		var c ReadConfig
		if cfg != nil {
			c = *cfg
		}
		if c.ChunkSize <= 0 {
			c.ChunkSize = defaultChunkSize
		}

		lines := NewLineDecoder(c.FlushRemainder)
		frames := NewFrameDecoder(c.Logger)

		emit := func(line string) bool {
			frame, ok := frames.Decode(line)
			if !ok {
				return true
			}
			ev, ok := frame.Event()
			if !ok {
				frames.logger.Debug("Skipping unrecognized frame",
					slog.String("event", frame.Type),
					slog.String("data", string(frame.Data)))
				return true
			}
			return yield(ev, nil)
		}

		buf := make([]byte, c.ChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			n, err := r.Read(buf)
			for _, line := range lines.Feed(buf[:n]) {
				if !emit(line) {
					return
				}
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				if line, ok := lines.Close(); ok {
					emit(line)
				}
				return
			}
			yield(nil, fmt.Errorf("error reading stream: %w", err))
			return
		}
	}
}
