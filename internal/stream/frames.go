package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// FrameDecoder groups decoded lines into frames. An "event:" line only applies to the single "data:" line
// that follows it; afterwards the event type falls back to EventMessage.
type FrameDecoder struct {
	eventType string

	logger *slog.Logger
}

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// NewFrameDecoder creates a FrameDecoder ready for a new stream.
func NewFrameDecoder(logger *slog.Logger) *FrameDecoder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FrameDecoder{
		eventType: EventMessage,
		logger:    logger,
	}
}

// Reset prepares the decoder for a new stream.
func (d *FrameDecoder) Reset() {
	d.eventType = EventMessage
}

// Decode consumes one line. It returns a frame when the line is a "data:" line with either the
// end-of-stream sentinel or a valid JSON payload. A payload that isn't valid JSON is logged and skipped;
// it doesn't affect the lines after it.
func (d *FrameDecoder) Decode(line string) (Frame, bool) {
	switch {
	case strings.HasPrefix(line, eventPrefix):
		d.eventType = strings.TrimSpace(line[len(eventPrefix):])
		return Frame{}, false
	case strings.HasPrefix(line, dataPrefix):
		eventType := d.eventType
		d.eventType = EventMessage

		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == DoneSentinel {
			return Frame{Done: true}, true
		}
		if !json.Valid([]byte(payload)) {
			d.logger.Debug("Skipping malformed data line",
				slog.String("event", eventType),
				slog.String("payload", payload))
			return Frame{}, false
		}
		return Frame{
			Type: eventType,
			Data: json.RawMessage(payload),
		}, true
	default:
		return Frame{}, false
	}
}
