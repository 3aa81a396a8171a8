package models

import "time"

// Exchange describes one question and the lifecycle of its streamed answer.
type Exchange struct {
	ID          string        `json:"id"`
	Question    string        `json:"question"`
	State       ExchangeState `json:"state"`
	SubmittedAt time.Time     `json:"submittedAt"`
	StartedAt   time.Time     `json:"startedAt,omitempty"`
	FinishedAt  time.Time     `json:"finishedAt,omitempty"`

	// AnswerID is the ID of the assistant message created for this exchange, if any.
	AnswerID string `json:"answerId,omitempty"`
	// Error holds the failure reason when State is ExchangeErrored.
	Error string `json:"error,omitempty"`
}

// ExchangeState is a state of the per-exchange state machine:
//
//	queued -> dispatched -> streaming -> {complete, errored}
//
// dispatched may also go straight to a terminal state when no delta arrives.
type ExchangeState string

const (
	ExchangeQueued     ExchangeState = "queued"
	ExchangeDispatched ExchangeState = "dispatched"
	ExchangeStreaming  ExchangeState = "streaming"
	ExchangeComplete   ExchangeState = "complete"
	ExchangeErrored    ExchangeState = "errored"
)

// Terminal reports whether the exchange has finished.
func (s ExchangeState) Terminal() bool {
	return s == ExchangeComplete || s == ExchangeErrored
}
