package stream

import (
	"encoding/json"

	"github.com/tmaxmax/go-sse"
)

var errorEventType = sse.Type(EventError)

// DeltaMessage encodes a delta as an untyped event, which clients treat as EventMessage.
func DeltaMessage(text string) (*sse.Message, error) {
	data, err := json.Marshal(deltaPayload{Delta: text})
	if err != nil {
		return nil, err
	}
	msg := &sse.Message{}
	msg.AppendData(string(data))
	return msg, nil
}

// ErrorMessage encodes an error reported to the client.
func ErrorMessage(message string) (*sse.Message, error) {
	data, err := json.Marshal(errorPayload{Message: message})
	if err != nil {
		return nil, err
	}
	msg := &sse.Message{Type: errorEventType}
	msg.AppendData(string(data))
	return msg, nil
}

// DoneMessage encodes the end-of-stream sentinel.
func DoneMessage() *sse.Message {
	msg := &sse.Message{}
	msg.AppendData(DoneSentinel)
	return msg
}
