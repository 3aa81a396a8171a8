package models

import "time"

// Message is a single turn of the conversation. The Text of the most recent assistant message grows
// while its Status is StatusStreaming; every other message is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status"`
}

// Role represents the role of a message participant.
type Role string

// Status is the lifecycle status of a message.
type Status string

const (
	// RoleUser represents a message typed (or dictated) by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the answer service, or synthesized on its behalf
	// when the exchange fails.
	RoleAssistant Role = "assistant"

	// StatusPending marks a user message still waiting in the dispatch queue.
	StatusPending Status = "pending"
	// StatusStreaming marks an assistant message that is still receiving deltas.
	StatusStreaming Status = "streaming"
	// StatusComplete marks a finished message.
	StatusComplete Status = "complete"
	// StatusErrored marks a message that reports a failed exchange.
	StatusErrored Status = "errored"
)

// HistoryEntry is one element of the context window sent along with a question.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body posted to the answer service. History is omitted from the wire entirely when
// there is nothing to send.
type AskRequest struct {
	Question string         `json:"question"`
	History  []HistoryEntry `json:"history,omitempty"`
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusErrored
}
