package stream

import (
	"encoding/json"
)

// Event is a decoded increment of an answer stream. It is one of Delta, ErrorEvent or Done.
type Event interface {
	isEvent()
}

// Delta is a piece of the generated answer.
type Delta struct {
	Text string
}

// ErrorEvent is a well-formed error reported by the answer service.
type ErrorEvent struct {
	Message string
}

// Done marks the end of the answer.
type Done struct{}

func (Delta) isEvent()      {}
func (ErrorEvent) isEvent() {}
func (Done) isEvent()       {}

// Frame is one decoded (event type, payload) pair of the wire protocol.
type Frame struct {
	// Type is the value of the preceding "event:" line, or EventMessage.
	Type string
	// Data is the JSON payload of the "data:" line. It is nil for the end-of-stream sentinel.
	Data json.RawMessage
	// Done is set when the frame is the end-of-stream sentinel.
	Done bool
}

const (
	// EventMessage is the event type of frames carrying answer deltas. It is the default when no "event:"
	// line precedes a "data:" line.
	EventMessage = "message"
	// EventError is the event type of frames carrying an error reported by the answer service.
	EventError = "error"

	// DoneSentinel is the payload of the "data:" line terminating a stream.
	DoneSentinel = "[DONE]"

	unknownErrorMessage = "unknown error"
)

type deltaPayload struct {
	Delta string `json:"delta"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Event interprets the frame. The second return value is false when the frame has an unknown event type
// or a payload of an unexpected shape; such frames carry nothing for the conversation and are skipped.
func (f Frame) Event() (Event, bool) {
	if f.Done {
		return Done{}, true
	}

	switch f.Type {
	case EventMessage:
		var p deltaPayload
		if err := json.Unmarshal(f.Data, &p); err != nil || p.Delta == "" {
			return nil, false
		}
		return Delta{Text: p.Delta}, true
	case EventError:
		var p errorPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, false
		}
		if p.Message == "" {
			p.Message = unknownErrorMessage
		}
		return ErrorEvent{Message: p.Message}, true
	default:
		return nil, false
	}
}
